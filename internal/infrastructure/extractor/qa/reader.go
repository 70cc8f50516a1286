package qa

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// Reader selects the record format by file extension.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Records(ctx context.Context, name string, data []byte) ([]domain.QARecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ParseWorkbook(data)
	}
	if !utf8.Valid(data) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read qa records", fmt.Errorf("%s is not utf-8 text", name))
	}
	return ParseText(string(data)), nil
}
