package catalogfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// catalogNamespace seeds the ids derived for entries that omit one.
var catalogNamespace = uuid.MustParse("6f1c7a2e-3b0d-5c8e-9a41-0d2b6e7f8c90")

type document struct {
	Policies []domain.PolicyRecord `yaml:"policies"`
}

// LoadFile reads a catalog seed file. JSON seed files are accepted too,
// since JSON is valid YAML.
func LoadFile(path string) ([]domain.PolicyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load accepts either a top-level list of policies or a mapping with a
// "policies" key.
func Load(r io.Reader) ([]domain.PolicyRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load catalog", errors.New("catalog is empty"))
	}

	var policies []domain.PolicyRecord
	if listErr := yaml.Unmarshal(raw, &policies); listErr != nil {
		var doc document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode catalog", err)
		}
		policies = doc.Policies
	}

	seen := make(map[string]int, len(policies))
	for i := range policies {
		if err := normalize(&policies[i]); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, fmt.Sprintf("catalog entry %d", i+1), err)
		}
		if prev, dup := seen[policies[i].ID]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load catalog",
				fmt.Errorf("entries %d and %d share id %s", prev+1, i+1, policies[i].ID))
		}
		seen[policies[i].ID] = i
	}
	return policies, nil
}

func normalize(p *domain.PolicyRecord) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Insurer = strings.TrimSpace(p.Insurer)
	if p.Name == "" || p.Insurer == "" {
		return errors.New("name and insurer are required")
	}
	p.Type = domain.PolicyType(strings.ToLower(strings.TrimSpace(string(p.Type))))
	if !p.Type.Valid() {
		return fmt.Errorf("unknown policy type %q", p.Type)
	}
	if p.PremiumMin < 0 || p.PremiumMax < 0 || p.SumInsuredMin < 0 || p.SumInsuredMax < 0 {
		return errors.New("amounts must not be negative")
	}
	if p.PremiumMax > 0 && p.PremiumMin > p.PremiumMax {
		return fmt.Errorf("premium_min %.0f exceeds premium_max %.0f", p.PremiumMin, p.PremiumMax)
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewSHA1(catalogNamespace, []byte(strings.ToLower(p.Insurer+"|"+p.Name))).String()
	}
	if p.Exclusions == nil {
		p.Exclusions = []string{}
	}
	return nil
}
