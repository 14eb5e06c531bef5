package diff

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/mcncl/jsondelta/internal/errors"
)

// pointer is the position of a node inside a tree, rendered as an RFC 6901
// JSON Pointer in error messages
type pointer []string

func (p pointer) key(k string) pointer {
	// full slice expression so siblings never share a backing array
	return append(p[:len(p):len(p)], k)
}

func (p pointer) index(i int) pointer {
	return p.key(strconv.Itoa(i))
}

func (p pointer) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range p {
		b.WriteByte('/')
		b.WriteString(escapeToken(token))
	}
	return b.String()
}

func escapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// at pins an error to a position unless it already carries one
func at(err error, p pointer) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Path == "" {
		return appErr.WithPath(p.String())
	}
	return err
}
