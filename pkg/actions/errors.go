package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrDecryptFailed marks credential decryption failures. These are fatal
// to compilation: an action set without usable secrets must not produce
// callable builders.
var ErrDecryptFailed = errors.New("action secret decryption failed")

// ArgumentError reports call arguments that failed an operation's
// parameter schema.
type ArgumentError struct {
	Function string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Function, strings.Join(e.Problems, "; "))
}

func describeProblems(result *gojsonschema.Result) []string {
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems
}

func compileParameterSchema(parameters map[string]any) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(parameters))
	if err != nil {
		// An uncompilable schema disables validation for this operation
		// rather than failing the whole action set.
		return nil
	}
	return schema
}
