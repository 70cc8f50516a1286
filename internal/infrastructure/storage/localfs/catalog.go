package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

// Catalog loads web page lists stored as JSON or YAML arrays of {url, title}.
type Catalog struct {
	storage ports.ObjectStorage
}

func NewCatalog(storage ports.ObjectStorage) *Catalog {
	return &Catalog{storage: storage}
}

func (c *Catalog) Pages(ctx context.Context, key string) ([]domain.WebPage, error) {
	reader, err := c.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open web list: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read web list: %w", err)
	}

	var pages []domain.WebPage
	switch strings.ToLower(filepath.Ext(key)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &pages)
	default:
		err = json.Unmarshal(raw, &pages)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse web list", err)
	}

	out := pages[:0]
	for _, page := range pages {
		page.URL = strings.TrimSpace(page.URL)
		if page.URL == "" {
			continue
		}
		out = append(out, page)
	}
	return out, nil
}
