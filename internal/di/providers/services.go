package providers

import (
	"github.com/samber/do/v2"

	"github.com/nurole/shorttoken/internal/config"
	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/logger"
	"github.com/nurole/shorttoken/internal/service"
)

// ProvideLinkService provides the link service guarded by the link token policy.
func ProvideLinkService(i do.Injector) (*service.LinkService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	policy, err := cfg.Links.Policy(domain.LinkToken.Name)
	if err != nil {
		return nil, err
	}

	log.Info("Link token policy",
		"length", policy.Length,
		"charset", policy.Charset,
		"max_retries", policy.MaxRetries,
		"space", policy.Space(),
	)

	return service.NewLinkService(storeHandle.Links, policy, log.Logger, cfg.Server.PublicURL)
}

// ProvideInviteService provides the invite service guarded by the invite code policy.
func ProvideInviteService(i do.Injector) (*service.InviteService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	policy, err := cfg.Invites.Policy(domain.InviteCode.Name)
	if err != nil {
		return nil, err
	}

	return service.NewInviteService(storeHandle.Invites, policy, log.Logger, cfg.Server.PublicURL)
}
