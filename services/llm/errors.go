// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
)

// Generation failure stages.
const (
	StageTransport  = "transport"
	StageParse      = "parse"
	StageValidation = "validation"
)

// GenerationError reports a failed generation call or output that does not
// satisfy the requested schema.
type GenerationError struct {
	Stage  string
	Schema string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Schema != "" {
		return fmt.Sprintf("generation error (%s, schema %s): %v", e.Stage, e.Schema, e.Err)
	}
	return fmt.Sprintf("generation error (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
