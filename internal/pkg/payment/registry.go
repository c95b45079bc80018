package payment

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
)

// Factory builds a gateway instance. A nil config produces an
// anonymous instance backed by platform or test credentials, which is
// enough for webhook routing and discovery.
type Factory func(cfg *models.GatewayConfig, repo Repository) (Gateway, error)

// Entry describes one gateway in the static catalog.
type Entry struct {
	Name        string
	DisplayName string
	LogoURL     string
	New         Factory
}

// Registry holds the gateway catalog and resolves merchant
// configurations. It is constructed once at startup and injected into
// every consumer; there is no package-level instance.
type Registry struct {
	repo    Repository
	entries []Entry
}

// NewRegistry builds a registry with the built-in gateway catalog.
func NewRegistry(repo Repository) *Registry {
	r := &Registry{repo: repo}
	r.Register(Entry{
		Name:        models.GatewayStripe,
		DisplayName: "Stripe",
		LogoURL:     "https://cdn.jsdelivr.net/gh/gilbarbara/logos/logos/stripe.svg",
		New: func(cfg *models.GatewayConfig, repo Repository) (Gateway, error) {
			return NewStripeGateway(cfg, repo)
		},
	})
	return r
}

// Register adds a gateway entry to the catalog. Later registrations
// with the same name shadow earlier ones.
func (r *Registry) Register(e Entry) {
	for i := range r.entries {
		if r.entries[i].Name == e.Name {
			r.entries[i] = e
			return
		}
	}
	r.entries = append(r.entries, e)
}

// ListAvailable returns metadata for every gateway that can currently
// be instantiated. Entries whose factory fails are logged and skipped
// so one broken plugin never breaks discovery.
func (r *Registry) ListAvailable() []GatewayInfo {
	infos := make([]GatewayInfo, 0, len(r.entries))
	for _, e := range r.entries {
		gw, err := e.New(nil, r.repo)
		if err != nil {
			log.Printf("gateway %s unavailable: %v", e.Name, err)
			continue
		}
		infos = append(infos, GatewayInfo{
			Name:                gw.Name(),
			DisplayName:         gw.DisplayName(),
			LogoURL:             e.LogoURL,
			RequiredCredentials: gw.RequiredCredentials(),
		})
	}
	return infos
}

// Instantiate builds a gateway either from a merchant config (using
// its gateway name and decrypted credentials) or by bare catalog name.
// Exactly one of cfg and name must be provided.
func (r *Registry) Instantiate(cfg *models.GatewayConfig, name string) (Gateway, error) {
	if cfg != nil && name != "" {
		return nil, fmt.Errorf("gateway lookup takes a config or a name, not both")
	}
	if cfg == nil && name == "" {
		return nil, fmt.Errorf("gateway lookup requires a config or a name")
	}
	if cfg != nil {
		name = cfg.GatewayName
	}
	for _, e := range r.entries {
		if e.Name == name {
			return e.New(cfg, r.repo)
		}
	}
	return nil, fmt.Errorf("unsupported gateway: %s", name)
}

// ResolveForUser picks the merchant's gateway config: the default one
// if marked, otherwise the first active one. It returns nil without
// error when the user has no active config.
func (r *Registry) ResolveForUser(userID uint) (*models.GatewayConfig, error) {
	cfg, err := r.repo.GetDefaultConfigForUser(userID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	configs, err := r.repo.ListActiveConfigsForUser(userID)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return &configs[0], nil
}
