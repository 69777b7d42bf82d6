package prefs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"dualswap/pkg/logger"
	"dualswap/pkg/types"
	"dualswap/pkg/units"
)

// Persisted keys, one entry per preference field
const (
	KeyNetwork      = "network"
	KeySlippage     = "slippage"
	KeyFromToken    = "fromToken"
	KeyToToken      = "toToken"
	KeyFromSolToken = "fromSolToken"
	KeyToSolToken   = "toSolToken"
)

// Backend is durable key/value storage for preference entries
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store loads and persists swap preferences field by field.
// Writes are best-effort: failures are logged and never reach the caller.
type Store struct {
	backend Backend
	log     *logrus.Entry
	mu      sync.Mutex
}

// NewStore creates a preference store on top of a backend
func NewStore(backend Backend, log *logrus.Logger) *Store {
	return &Store{
		backend: backend,
		log:     logger.Component(log, "prefs"),
	}
}

// TokenKey returns the persisted key of a token slot
func TokenKey(network types.NetworkMode, side types.TokenSide) string {
	if network == types.NetworkSolana {
		if side == types.SideTo {
			return KeyToSolToken
		}
		return KeyFromSolToken
	}
	if side == types.SideTo {
		return KeyToToken
	}
	return KeyFromToken
}

// Load reads all preferences. Missing or corrupt entries fall back to defaults one field at a time.
func (s *Store) Load() types.SwapPreferences {
	prefs := types.DefaultPreferences()

	if raw, ok := s.get(KeyNetwork); ok && strings.TrimSpace(raw) == types.NetworkSolana.String() {
		prefs.Network = types.NetworkSolana
	}

	if raw, ok := s.get(KeySlippage); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 {
			prefs.SlippagePercent = v
		} else {
			s.log.WithField("value", raw).Warn("ignoring malformed slippage preference")
		}
	}

	for _, network := range types.Networks {
		for _, side := range []types.TokenSide{types.SideFrom, types.SideTo} {
			prefs.SetToken(network, side, s.loadToken(TokenKey(network, side)))
		}
	}

	return prefs
}

// Save persists every field of the preferences
func (s *Store) Save(p types.SwapPreferences) {
	s.SetNetwork(p.Network)
	s.SetSlippage(p.SlippagePercent)
	for _, network := range types.Networks {
		pair := p.Pair(network)
		s.SetToken(network, types.SideFrom, pair.From)
		s.SetToken(network, types.SideTo, pair.To)
	}
}

// SetNetwork persists the active network mode
func (s *Store) SetNetwork(network types.NetworkMode) {
	s.set(KeyNetwork, network.String())
}

// SetSlippage persists the slippage percentage
func (s *Store) SetSlippage(percent float64) {
	s.set(KeySlippage, strconv.FormatFloat(percent, 'f', -1, 64))
}

// SetToken persists one token slot. A nil token removes the entry.
func (s *Store) SetToken(network types.NetworkMode, side types.TokenSide, token *types.TokenDescriptor) {
	key := TokenKey(network, side)
	if token == nil {
		s.delete(key)
		return
	}

	data, err := json.Marshal(token)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to encode token preference")
		return
	}
	s.set(key, string(data))
}

func (s *Store) loadToken(key string) *types.TokenDescriptor {
	raw, ok := s.get(key)
	if !ok {
		return nil
	}

	var token types.TokenDescriptor
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("ignoring malformed token preference")
		return nil
	}
	if token.Address == "" || token.Decimals < 0 || token.Decimals > units.MaxDecimals {
		s.log.WithField("key", key).Warn("ignoring incomplete token preference")
		return nil
	}
	return &token
}

func (s *Store) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok, err := s.backend.Get(key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to read preference")
		return "", false
	}
	return value, ok
}

func (s *Store) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(key, value); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to persist preference")
	}
}

func (s *Store) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to remove preference")
	}
}
