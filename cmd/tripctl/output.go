package main

import (
	"errors"
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

// describe flattens field level details into the error text.
func describe(err error) error {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 {
		return err
	}
	var b strings.Builder
	b.WriteString(appErr.Message)
	for _, d := range appErr.Details {
		fmt.Fprintf(&b, "\n  %s: %s", d.Field, d.Message)
	}
	return errors.New(b.String())
}
