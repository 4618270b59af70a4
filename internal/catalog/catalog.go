// Package catalog builds and loads the product catalog table consumed
// by batch creation. One row per product/variant with its input images
// and optional ground-truth reference.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// Columns is the catalog table schema.
var Columns = []string{"product_id", "variant", "name", "images", "image_count", "gt_path"}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
}

// Load reads the catalog table. A missing catalog is fatal: batch
// creation requires a prior catalog build.
func Load(path string) ([]models.CatalogItem, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog: %s not found, run catalog build first", path)
	}
	t, err := tabular.Load(path)
	if err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(t.Rows))
	for _, row := range t.Rows {
		item := models.CatalogItem{
			ProductID:   row["product_id"],
			Variant:     row["variant"],
			Name:        row["name"],
			GroundTruth: row["gt_path"],
		}
		if imgs := row["images"]; imgs != "" {
			item.Images = strings.Split(imgs, ";")
		}
		items = append(items, item)
	}
	return items, nil
}

// Build scans the workspace products tree and overwrites the catalog
// table. Expected layout per item: products/<product_id>/<variant>/
// with an inputs/ directory of images and an optional gt/ directory
// whose first file is the ground-truth reference. Returns the number
// of catalog rows written.
func Build(layout workspace.Layout) (int, error) {
	root := layout.ProductsDir()
	products, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("catalog: read products dir %s: %w", root, err)
	}

	t := &tabular.Table{Columns: Columns}
	for _, p := range products {
		if !p.IsDir() {
			continue
		}
		variants, err := os.ReadDir(filepath.Join(root, p.Name()))
		if err != nil {
			return 0, fmt.Errorf("catalog: read product %s: %w", p.Name(), err)
		}
		for _, v := range variants {
			if !v.IsDir() {
				continue
			}
			row, err := scanVariant(layout, p.Name(), v.Name())
			if err != nil {
				return 0, err
			}
			t.Rows = append(t.Rows, row)
		}
	}

	sort.Slice(t.Rows, func(i, j int) bool {
		if t.Rows[i]["product_id"] != t.Rows[j]["product_id"] {
			return t.Rows[i]["product_id"] < t.Rows[j]["product_id"]
		}
		return t.Rows[i]["variant"] < t.Rows[j]["variant"]
	})

	if err := t.Write(layout.CatalogPath()); err != nil {
		return 0, err
	}
	return len(t.Rows), nil
}

func scanVariant(layout workspace.Layout, productID, variant string) (map[string]string, error) {
	base := filepath.Join(layout.ProductsDir(), productID, variant)

	var images []string
	entries, err := os.ReadDir(filepath.Join(base, "inputs"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog: read inputs for %s/%s: %w", productID, variant, err)
	}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		rel, _ := filepath.Rel(layout.Root, filepath.Join(base, "inputs", e.Name()))
		images = append(images, filepath.ToSlash(rel))
	}
	sort.Slice(images, func(i, j int) bool {
		return strings.ToLower(images[i]) < strings.ToLower(images[j])
	})

	gt := ""
	gtEntries, err := os.ReadDir(filepath.Join(base, "gt"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog: read gt for %s/%s: %w", productID, variant, err)
	}
	for _, e := range gtEntries {
		if !e.IsDir() {
			rel, _ := filepath.Rel(layout.Root, filepath.Join(base, "gt", e.Name()))
			gt = filepath.ToSlash(rel)
			break
		}
	}

	return map[string]string{
		"product_id":  productID,
		"variant":     variant,
		"name":        productID + "/" + variant,
		"images":      strings.Join(images, ";"),
		"image_count": strconv.Itoa(len(images)),
		"gt_path":     gt,
	}, nil
}
