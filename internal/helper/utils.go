package helper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// EnsureDir creates the directory if it does not exist yet.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// PrettyPrint dumps v as indented JSON to stdout, used by dry runs.
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
		return
	}
	fmt.Println(string(b))
}
