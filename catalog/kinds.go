package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/meikuraledutech/pipeline"
)

// Default returns the registry of the node kinds an appliance ships with.
func Default(devices DeviceSource) *Registry {
	r, err := New(devices, DeviceKind(), GainKind(), MixerKind(), SendKind(), DelayKind(), BiquadKind())
	if err != nil {
		panic(err)
	}
	return r
}

func audio(name string, dir pipeline.SlotDirection) pipeline.Slot {
	return pipeline.Slot{Name: name, Type: pipeline.ConnectionAudio, Direction: dir}
}

var passThrough = []pipeline.Slot{audio("in", pipeline.SlotInput), audio("out", pipeline.SlotOutput)}

// channelSlots names count slots prefix_1..prefix_count.
func channelSlots(prefix string, count int, dir pipeline.SlotDirection) []pipeline.Slot {
	out := make([]pipeline.Slot, 0, max(count, 0))
	for i := 1; i <= count; i++ {
		out = append(out, audio(prefix+"_"+strconv.Itoa(i), dir))
	}
	return out
}

// DeviceKind is a hardware endpoint. Capture devices expose one output per
// channel, playback devices one input per channel.
func DeviceKind() Kind {
	return Kind{
		Schematic: pipeline.Schematic{
			TypeName: pipeline.DeviceNodeKind,
			Fields: []pipeline.FieldDefinition{
				{Name: pipeline.DeviceField, Type: "ForeignKey", IsRelation: true, HelpText: "Audio device"},
			},
		},
		Relations: map[string]OptionsFunc{pipeline.DeviceField: deviceOptions(nil)},
		Dynamic: func(ctx context.Context, fields pipeline.Fields, devices DeviceSource) ([]pipeline.Slot, error) {
			id, ok := asInt(fields[pipeline.DeviceField])
			if !ok {
				return []pipeline.Slot{}, nil
			}
			d, err := devices.GetDevice(ctx, id)
			if errors.Is(err, pipeline.ErrDeviceNotFound) {
				return []pipeline.Slot{}, nil
			}
			if err != nil {
				return nil, err
			}
			channels := d.Channels
			if channels <= 0 {
				channels = 2
			}
			if d.IsCapture() {
				return channelSlots("out", channels, pipeline.SlotOutput), nil
			}
			return channelSlots("in", channels, pipeline.SlotInput), nil
		},
	}
}

// GainKind scales a signal.
func GainKind() Kind {
	return Kind{Schematic: pipeline.Schematic{
		TypeName: "Gain",
		Fields: []pipeline.FieldDefinition{
			{Name: "db", Type: "FloatField", HelpText: "Gain in dB"},
			{Name: "inverted", Type: "BooleanField"},
			{Name: "mute", Type: "BooleanField"},
		},
		Slots: passThrough,
	}}
}

var mixerMappingSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []any{"dest", "sources"},
		"properties": map[string]any{
			"dest": map[string]any{"type": "integer", "minimum": 0},
			"mute": map[string]any{"type": "boolean"},
			"sources": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"channel", "gain"},
					"properties": map[string]any{
						"channel":  map[string]any{"type": "integer", "minimum": 0},
						"gain":     map[string]any{"type": "number"},
						"inverted": map[string]any{"type": "boolean"},
					},
				},
			},
		},
	},
}

// MixerKind routes input channels to output channels. Its slots follow the
// channel counts.
func MixerKind() Kind {
	return Kind{
		Schematic: pipeline.Schematic{
			TypeName: "Mixer",
			Fields: []pipeline.FieldDefinition{
				{Name: "name", Type: "CharField"},
				{Name: "input_channels", Type: "IntegerField"},
				{Name: "output_channels", Type: "IntegerField"},
				{Name: "mapping", Type: "JSONField", Nullable: true, HelpText: "Per output channel source list"},
			},
		},
		JSONSchemas: map[string]map[string]any{"mapping": mixerMappingSchema},
		Dynamic: func(_ context.Context, fields pipeline.Fields, _ DeviceSource) ([]pipeline.Slot, error) {
			in, _ := asInt(fields["input_channels"])
			out, _ := asInt(fields["output_channels"])
			if in > 64 || out > 64 {
				return nil, fmt.Errorf("at most 64 channels per side, got %d to %d", in, out)
			}
			slots := channelSlots("in", int(in), pipeline.SlotInput)
			return append(slots, channelSlots("out", int(out), pipeline.SlotOutput)...), nil
		},
	}
}

// SendKind taps a signal towards an amplifier output.
func SendKind() Kind {
	return Kind{
		Schematic: pipeline.Schematic{
			TypeName: "Send",
			Fields: []pipeline.FieldDefinition{
				{Name: "amp_id", Type: "ForeignKey", IsRelation: true, Nullable: true, HelpText: "Playback device"},
				{Name: "mode", Type: "CharField", Choices: []pipeline.Choice{
					{Label: "Pre fader", Value: "pre"},
					{Label: "Post fader", Value: "post"},
				}},
				{Name: "level", Type: "FloatField"},
			},
			Slots: []pipeline.Slot{
				audio("in", pipeline.SlotInput),
				{Name: "level", Type: pipeline.ConnectionControl, Direction: pipeline.SlotInput},
			},
		},
		Relations: map[string]OptionsFunc{"amp_id": deviceOptions(pipeline.Device.IsPlayback)},
	}
}

// DelayKind delays a signal.
func DelayKind() Kind {
	return Kind{Schematic: pipeline.Schematic{
		TypeName: "Delay",
		Fields: []pipeline.FieldDefinition{
			{Name: "delay", Type: "DecimalField"},
			{Name: "unit", Type: "CharField", Choices: []pipeline.Choice{
				{Label: "Milliseconds", Value: "ms"},
				{Label: "Millimetres", Value: "mm"},
				{Label: "Samples", Value: "samples"},
			}},
			{Name: "subsample", Type: "BooleanField"},
		},
		Slots: passThrough,
	}}
}

// BiquadKind is a second order filter.
func BiquadKind() Kind {
	return Kind{Schematic: pipeline.Schematic{
		TypeName: "Biquad",
		Fields: []pipeline.FieldDefinition{
			{Name: "filter_type", Type: "CharField", Choices: []pipeline.Choice{
				{Label: "Lowpass", Value: "Lowpass"},
				{Label: "Highpass", Value: "Highpass"},
				{Label: "Peaking", Value: "Peaking"},
				{Label: "Lowshelf", Value: "Lowshelf"},
				{Label: "Highshelf", Value: "Highshelf"},
				{Label: "Notch", Value: "Notch"},
			}},
			{Name: "freq", Type: "FloatField", HelpText: "Hz"},
			{Name: "q", Type: "FloatField"},
			{Name: "gain", Type: "FloatField", HelpText: "dB, peaking and shelf filters"},
			{Name: "updated_at", Type: "DateTimeField"},
		},
		Slots: passThrough,
	}}
}

// deviceOptions lists devices accepted by keep, or all devices when keep is
// nil.
func deviceOptions(keep func(pipeline.Device) bool) OptionsFunc {
	return func(ctx context.Context, devices DeviceSource) ([]pipeline.RelationOption, error) {
		all, err := devices.ListDevices(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]pipeline.RelationOption, 0, len(all))
		for _, d := range all {
			if keep != nil && !keep(d) {
				continue
			}
			out = append(out, pipeline.RelationOption{ID: json.Number(strconv.FormatInt(d.ID, 10)), Name: d.Name})
		}
		return out, nil
	}
}
