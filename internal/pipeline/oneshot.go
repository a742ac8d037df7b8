package pipeline

import (
	"context"
	"fmt"
	"os"

	"estimatesync/internal"
)

// ExtractFile runs the extractor over a local file.
func ExtractFile(ctx context.Context, extractor *Extractor, path string, strict bool) (internal.EstimateRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.EstimateRecord{}, err
	}
	if kind := DetectDocumentKind(path, "", blob); kind == internal.KindUnknown {
		return internal.EstimateRecord{}, fmt.Errorf("%w: %s", internal.ErrUnsupportedDocument, path)
	}
	if strict {
		return extractor.ExtractStrict(ctx, blob)
	}
	return extractor.Extract(ctx, blob), nil
}
