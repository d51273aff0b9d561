// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Chain renders the messages of err and every error it wraps, outermost first.
// Only single-error Unwrap chains are followed.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}

// Trace formats the wrap chain of err as an indented "caused by" listing.
// Returns an empty string when err wraps nothing.
func Trace(err error) string {
	chain := Chain(err)
	if len(chain) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chain[0])
	for _, msg := range chain[1:] {
		b.WriteString("\n  caused by: ")
		b.WriteString(msg)
	}
	return b.String()
}

// Suggest extracts an actionable suggestion from the first UserVisibleError
// in err's chain. Returns an empty string when none is found.
func Suggest(err error) string {
	var uve UserVisibleError
	if errors.As(err, &uve) && uve.IsUserVisible() {
		return uve.Suggestion()
	}
	return ""
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}
