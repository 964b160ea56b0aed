// README: Field-level format checks backed by go-playground/validator.
package types

import "github.com/go-playground/validator/v10"

var fields = validator.New()

// IsURL reports whether s is an absolute URL with a scheme and host.
func IsURL(s string) bool {
	return fields.Var(s, "required,url") == nil
}

func IsEmail(s string) bool {
	return fields.Var(s, "required,email") == nil
}
