/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"errors"
	"fmt"
	"reflect"
)

// Validator is implemented by response types that carry invariants the JSON
// schema cannot express.
type Validator interface {
	Validate() error
}

// Validate checks v when it implements Validator. A nil pointer, which is
// what a JSON null decodes to, is always invalid.
func Validate(v any) error {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return errors.New("invalid response: null")
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}
	}
	return nil
}
