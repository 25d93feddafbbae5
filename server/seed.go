package main

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/catalog"
)

var demoDevices = []pipeline.Device{
	{Name: "hw:CARD=USB,DEV=0 capture", DeviceType: pipeline.DeviceCapture, Active: true, Backend: "alsa", Format: "S32LE", SampleRate: 48000, Channels: 2},
	{Name: "hw:CARD=USB,DEV=0 playback", DeviceType: pipeline.DevicePlayback, Active: true, Backend: "alsa", Format: "S32LE", SampleRate: 48000, Channels: 2},
	{Name: "hw:CARD=HDMI,DEV=1 playback", DeviceType: pipeline.DevicePlayback, Active: false, Backend: "alsa", Format: "S16LE", SampleRate: 48000, Channels: 8},
}

// seed registers the demo devices and, when no pipeline exists yet, a
// capture -> gain -> playback pipeline.
func seed(ctx context.Context, store pipeline.Store, registry *catalog.Registry) error {
	ids := make([]int64, len(demoDevices))
	for i := range demoDevices {
		d := demoDevices[i]
		id, err := store.UpsertDevice(ctx, &d)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.Name, err)
		}
		ids[i] = id
	}

	existing, err := store.ListPipelines(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	p, err := store.CreatePipeline(ctx, "Living room")
	if err != nil {
		return err
	}
	prepared, dynamic, err := registry.PrepareGraph(ctx, pipeline.Payload{
		Nodes: []pipeline.NodeInput{
			{TypeName: pipeline.DeviceNodeKind, Fields: pipeline.Fields{pipeline.DeviceField: ids[0]}},
			{TypeName: "Gain", Fields: pipeline.Fields{"db": -6.0, "mute": false}},
			{TypeName: pipeline.DeviceNodeKind, Fields: pipeline.Fields{pipeline.DeviceField: ids[1]}},
		},
		Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}, {NodeA: 1, NodeB: 2}},
	})
	if err != nil {
		return err
	}
	_, err = store.ReplaceGraph(ctx, p.ID, prepared, dynamic)
	return err
}
