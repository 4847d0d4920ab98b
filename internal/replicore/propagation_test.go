// SPDX-License-Identifier: AGPL-3.0-or-later
// Replicore - spatial event replication core for real-time multiplayer servers
// Copyright (C) 2026 The Replicore Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package replicore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu  sync.Mutex
	out []struct {
		observer replicore.ObserverID
		channel  replicore.Channel
		payload  []byte
	}
	err error
}

func (s *recordingSender) SendToObserver(_ context.Context, observer replicore.ObserverID, channel replicore.Channel, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, struct {
		observer replicore.ObserverID
		channel  replicore.Channel
		payload  []byte
	}{observer, channel, payload})
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.out)
}

func TestPropagationLayerOnZoneDeltaPublishesBothTags(t *testing.T) {
	t.Parallel()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)

	obj := newFakeObject("ship", layerAt(0, 50))
	objID := replicore.NewObjectID()
	observer := replicore.NewObserverID()

	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe(replicore.GorcInstanceTag(objID, 0, true), func(context.Context, replicore.EventTag, any) { wg.Done() })
	bus.Subscribe(replicore.GorcTypeTag("ship", 0, true), func(context.Context, replicore.EventTag, any) { wg.Done() })

	p.OnZoneDelta(replicore.ZoneDeltaEvent{
		ObjectID: objID, ObjectType: "ship", Channel: 0,
		Layer: layerAt(0, 50), Observer: observer, Entering: true, Object: obj,
	})

	waitTimeout(t, &wg, time.Second)
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, time.Millisecond)
}

func TestPropagationLayerOnZoneDeltaExitDoesNotDeliver(t *testing.T) {
	t.Parallel()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)

	p.OnZoneDelta(replicore.ZoneDeltaEvent{
		ObjectID: replicore.NewObjectID(), Channel: 0, Entering: false,
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
}

// subscribedFixture wires an Instance Manager with one registered
// object and one observer already inside its zone, the precondition
// EmitInstance needs to enumerate a non-empty subscriber set.
func subscribedFixture(t *testing.T) (*replicore.InstanceManager, replicore.Object, replicore.ObjectID, replicore.ObserverID) {
	t.Helper()
	ctx := context.Background()

	instances := replicore.NewInstanceManager(100, 5000)
	obj := newFakeObject("ship", layerAt(0, 50))
	objID, err := instances.RegisterObject(ctx, obj, geom.Vec3{})
	require.NoError(t, err)
	observer := replicore.NewObserverID()
	require.NoError(t, instances.AddObserver(ctx, observer, geom.Vec3{}))

	return instances, obj, objID, observer
}

func TestPropagationLayerSetSenderWiresLateTransport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bus := replicore.NewEventBus(nil)
	p := replicore.NewPropagationLayer(bus, nil)
	instances, obj, objID, _ := subscribedFixture(t)
	p.SetInstances(instances)

	err := p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationClient)
	require.ErrorIs(t, err, replicore.ErrTransport)

	sender := &recordingSender{}
	p.SetSender(sender)
	err = p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationClient)
	require.NoError(t, err)
	assert.Equal(t, 1, sender.count())
}

func TestPropagationLayerEmitInstanceRequiresInstanceManagerForClientDelivery(t *testing.T) {
	t.Parallel()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)
	obj := newFakeObject("ship", layerAt(0, 50))

	err := p.EmitInstance(context.Background(), obj, replicore.NewObjectID(), "tick", layerAt(0, 50), replicore.DestinationClient)
	require.ErrorIs(t, err, replicore.ErrTransport)
}

func TestPropagationLayerEmitInstanceDestinations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)
	instances, obj, objID, _ := subscribedFixture(t)
	p.SetInstances(instances)

	var serverCalled bool
	var mu sync.Mutex
	bus.Subscribe(replicore.GorcTypeNamedTag("ship", 0, "tick"), func(context.Context, replicore.EventTag, any) {
		mu.Lock()
		serverCalled = true
		mu.Unlock()
	})

	err := p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationNone)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.False(t, serverCalled)
	mu.Unlock()
	assert.Equal(t, 0, sender.count())

	err = p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationBoth)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return serverCalled
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, sender.count())
}

func TestPropagationLayerEmitInstanceDeliversToEverySubscriber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)

	instances := replicore.NewInstanceManager(100, 5000)
	obj := newFakeObject("ship", layerAt(0, 50))
	objID, err := instances.RegisterObject(ctx, obj, geom.Vec3{})
	require.NoError(t, err)
	require.NoError(t, instances.AddObserver(ctx, replicore.NewObserverID(), geom.Vec3{X: 10}))
	require.NoError(t, instances.AddObserver(ctx, replicore.NewObserverID(), geom.Vec3{X: 20}))
	p.SetInstances(instances)

	err = p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationClient)
	require.NoError(t, err)
	assert.Equal(t, 2, sender.count(), "every current subscriber on the channel receives the emission")
}

func TestPropagationLayerEmitInstanceOrdersByPriorityWhenSubscriptionsWired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{}
	p := replicore.NewPropagationLayer(bus, sender)

	instances := replicore.NewInstanceManager(100, 5000)
	obj := newFakeObject("ship", layerAt(0, 500))
	objID, err := instances.RegisterObject(ctx, obj, geom.Vec3{})
	require.NoError(t, err)

	far := replicore.NewObserverID()
	near := replicore.NewObserverID()
	require.NoError(t, instances.AddObserver(ctx, far, geom.Vec3{X: 400}))
	require.NoError(t, instances.AddObserver(ctx, near, geom.Vec3{X: 10}))

	p.SetInstances(instances)
	p.SetSubscriptions(replicore.NewSubscriptionManager(50, 150, 300))

	err = p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 500), replicore.DestinationClient)
	require.NoError(t, err)
	require.Equal(t, 2, sender.count())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, near, sender.out[0].observer, "the Critical-band observer is delivered before the Low-band one")
}

func TestPropagationLayerEmitInstanceWrapsTransportError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bus := replicore.NewEventBus(nil)
	sender := &recordingSender{err: errors.New("connection reset")}
	p := replicore.NewPropagationLayer(bus, sender)
	instances, obj, objID, _ := subscribedFixture(t)
	p.SetInstances(instances)

	err := p.EmitInstance(ctx, obj, objID, "tick", layerAt(0, 50), replicore.DestinationClient)
	require.ErrorIs(t, err, replicore.ErrTransport)
}
