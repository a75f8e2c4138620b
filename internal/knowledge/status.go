package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// Status lists every markdown document in the knowledge directory with its
// size and modification time. A missing directory is an empty listing.
func Status(dir string) ([]models.KnowledgeFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.KnowledgeFile{}, nil
		}
		return nil, fmt.Errorf("knowledge: read dir: %w", err)
	}

	out := []models.KnowledgeFile{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, models.KnowledgeFile{
			Name:       e.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
