//go:build !azure

package archive

import (
	"context"
	"fmt"
)

func newAzureSource(context.Context, Config) (Source, error) {
	return nil, fmt.Errorf("archive: azure driver requires building with -tags azure")
}
