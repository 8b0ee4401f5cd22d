package query

import "github.com/go-playground/validator/v10"

// validate backs the `validate` struct tags on C7's input DTOs, grounded in
// the teacher's per-package validator.New() + Struct() pattern.
var validate = validator.New()
