package directory

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"zcnsdk/internal/config"
	"zcnsdk/internal/fanout"
)

var log = logging.Logger("zcn/directory")

// Node classes.
const (
	Miners   = "miners"
	Sharders = "sharders"
)

// ErrDomainRequired is returned when discovery is needed but no domain is
// configured.
var ErrDomainRequired = config.ErrDomainRequired

// Network is the current set of chain nodes. Order is priority order.
type Network struct {
	Miners   []string `json:"miners"`
	Sharders []string `json:"sharders"`
}

// Nodes returns the endpoints of class.
func (n Network) Nodes(class string) []string {
	switch class {
	case Miners:
		return n.Miners
	case Sharders:
		return n.Sharders
	default:
		return nil
	}
}

// DiscoveryURL returns the network discovery URL for domain. A bare host is
// queried at https://host/dns/network. A domain with an http(s) scheme is
// queried at /network, or at /dns/network when it ends in /dns or
// /dns/network.
func DiscoveryURL(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	d = strings.TrimRight(d, "/")
	dns := false
	for _, suffix := range []string{"/dns/network", "/network", "/dns"} {
		if strings.HasSuffix(d, suffix) {
			d = strings.TrimSuffix(d, suffix)
			dns = suffix != "/network"
			break
		}
	}
	d = strings.TrimRight(d, "/")
	if d == "" {
		return "", ErrDomainRequired
	}

	if !strings.HasPrefix(d, "http") {
		return "https://" + d + "/dns/network", nil
	}
	if dns {
		return d + "/dns/network", nil
	}
	return d + "/network", nil
}

// Directory resolves the miner and sharder sets.
type Directory struct {
	domain    string
	static    *Network
	requester *fanout.Requester
	cache     *expirable.LRU[string, Network]
}

// New creates a directory from cfg. Static miners and sharders in cfg are
// returned as-is without discovery. A positive cfg.DiscoveryCacheTTL caches
// discovery results for that long.
func New(cfg config.Config, requester *fanout.Requester) *Directory {
	d := &Directory{
		domain:    cfg.Domain,
		requester: requester,
	}
	if cfg.HasStaticNetwork() {
		d.static = &Network{
			Miners:   normalize(cfg.Miners),
			Sharders: normalize(cfg.Sharders),
		}
	}
	if ttl := time.Duration(cfg.DiscoveryCacheTTL); ttl > 0 {
		d.cache = expirable.NewLRU[string, Network](1, nil, ttl)
	}
	return d
}

// Discover returns the current network. Without a static network or a
// cached result it performs one GET against the discovery URL.
func (d *Directory) Discover(ctx context.Context) (Network, error) {
	if d.static != nil {
		return d.static.clone(), nil
	}

	u, err := DiscoveryURL(d.domain)
	if err != nil {
		return Network{}, err
	}

	if d.cache != nil {
		if n, ok := d.cache.Get(u); ok {
			return n.clone(), nil
		}
	}

	env := d.requester.Do(ctx, "GET", u, nil)
	if !env.OK {
		return Network{}, xerrors.Errorf("discover network at %s: %w", u, env.Err)
	}

	var n Network
	if err := json.Unmarshal(env.Payload, &n); err != nil {
		return Network{}, xerrors.Errorf("decode network from %s: %w", u, err)
	}
	n.Miners = normalize(n.Miners)
	n.Sharders = normalize(n.Sharders)
	log.Debugw("discovered network", "url", u, "miners", len(n.Miners), "sharders", len(n.Sharders))

	if d.cache != nil {
		d.cache.Add(u, n)
	}
	return n.clone(), nil
}

// Purge drops any cached discovery result.
func (d *Directory) Purge() {
	if d.cache != nil {
		d.cache.Purge()
	}
}

func (n Network) clone() Network {
	return Network{
		Miners:   append([]string(nil), n.Miners...),
		Sharders: append([]string(nil), n.Sharders...),
	}
}

func normalize(endpoints []string) []string {
	out := lo.FilterMap(endpoints, func(e string, _ int) (string, bool) {
		e = strings.TrimRight(strings.TrimSpace(e), "/")
		return e, e != ""
	})
	return lo.Uniq(out)
}

var (
	defaultRandMu sync.Mutex
	defaultRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Shuffle returns a shuffled copy of endpoints. A nil r uses a shared,
// time-seeded source.
func Shuffle(endpoints []string, r *rand.Rand) []string {
	out := append([]string(nil), endpoints...)
	if r == nil {
		defaultRandMu.Lock()
		defer defaultRandMu.Unlock()
		r = defaultRand
	}
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
