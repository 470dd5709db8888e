package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		ev     Event
		want   string
	}{
		{"plain", "bus", Event{Type: PositionUpdated, DriverID: "drv-1"}, "bus.position_updated.drv-1"},
		{"unsafe driver id", "bus", Event{Type: ServiceStopped, DriverID: "a.b *c"}, "bus.service_stopped.a_b__c"},
		{"empty driver id", "bus", Event{Type: StageChanged}, "bus.stage_changed._"},
		{"no prefix", "", Event{Type: ServiceStarted, DriverID: "x"}, "service_started.x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.prefix, tt.ev))
		})
	}
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recorder{}
	b := &recorder{err: boom}
	f := Fanout{a, nil, b}

	err := f.Publish(context.Background(), Event{Type: ServiceStarted, DriverID: "d"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)

	assert.NoError(t, Noop{}.Publish(context.Background(), Event{}))
}
