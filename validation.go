package main

import (
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 128
)

func isValidUsername(username string) bool {
	// Length is in characters, not bytes: multi-byte letters count once.
	if username == "" || utf8.RuneCountInString(username) > 32 {
		return false
	}

	for _, r := range username {
		if r == '-' || r == '_' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}

	return true
}

func isValidPassword(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}
