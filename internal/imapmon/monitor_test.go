package imapmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/domain"
)

type noopDelegate struct{}

func (noopDelegate) OnConnect()           {}
func (noopDelegate) OnDisconnect()        {}
func (noopDelegate) OnError(err error)    {}
func (noopDelegate) OnEmail(domain.Verdict) {}

func newTestMonitor() *Monitor {
	cfg := config.NewAccountConfig("acct", "Acct", "user@example.com", config.ProviderCustom)
	return NewMonitor(cfg, nil, nil, noopDelegate{}, 0)
}

func TestNewMonitor_StartsDisconnected(t *testing.T) {
	m := newTestMonitor()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestNewMonitor_DefaultsHeartbeatWhenNonPositive(t *testing.T) {
	cfg := config.NewAccountConfig("acct", "Acct", "user@example.com", config.ProviderCustom)
	m := NewMonitor(cfg, nil, nil, noopDelegate{}, 0)
	assert.Equal(t, DefaultHeartbeatInterval, m.heartbeat)

	m2 := NewMonitor(cfg, nil, nil, noopDelegate{}, 10*time.Second)
	assert.Equal(t, 10*time.Second, m2.heartbeat)
}

func TestMonitor_StopOnDisconnectedIsANoop(t *testing.T) {
	m := newTestMonitor()
	assert.NoError(t, m.Stop())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestMonitor_ActionsFailWhenNotConnected(t *testing.T) {
	m := newTestMonitor()
	assert.ErrorIs(t, m.MoveToJunk(1), ErrNotConnected)
	assert.ErrorIs(t, m.DeleteEmail(1), ErrNotConnected)
	assert.ErrorIs(t, m.FlagMessage(1), ErrNotConnected)
}
