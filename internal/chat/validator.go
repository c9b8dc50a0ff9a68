package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentChars is the maximum character count for a message body.
const MaxContentChars = 500

// Validation errors. They are surfaced only to the originating client,
// never broadcast.
var (
	ErrEmptyContent   = fmt.Errorf("chat: message is empty")
	ErrContentTooLong = fmt.Errorf("chat: message exceeds %d character limit", MaxContentChars)
	ErrInvalidUTF8    = fmt.Errorf("chat: message contains invalid UTF-8")
)

// ValidateContent checks that a message body is sendable: non-blank after
// trimming, within the character limit (measured on the untrimmed body), and
// valid UTF-8.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return ErrContentTooLong
	}
	if !utf8.ValidString(content) {
		return ErrInvalidUTF8
	}
	return nil
}
