package textenc

import "fmt"

// EncodingError indicates a character that has no Shift-JIS representation.
type EncodingError struct {
	Text   string
	Rune   rune
	Offset int
}

func (err EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %q (U+%04X) at offset %d of %q as shift-jis", err.Rune, err.Rune, err.Offset, err.Text)
}

// NameTooLongError indicates a name rejected because it does not fit its
// fixed-width field.
type NameTooLongError struct {
	Text  string
	Len   int
	Width int
}

func (err NameTooLongError) Error() string {
	return fmt.Sprintf("name %q is %d bytes, field holds %d", err.Text, err.Len, err.Width)
}
