package pipeline

import (
	"context"
	"errors"
)

var (
	ErrSchemaUnavailable          = errors.New("pipeline: schematics unavailable")
	ErrSchematicNotFound          = errors.New("pipeline: schematic not found")
	ErrPipelineNotFound           = errors.New("pipeline: pipeline not found")
	ErrNodeNotFound               = errors.New("pipeline: node not found")
	ErrDeviceNotFound             = errors.New("pipeline: device not found")
	ErrCycleDetected              = errors.New("pipeline: cycle detected, graph is not acyclic")
	ErrEdgeOutOfRange             = errors.New("pipeline: edge references a node index out of range")
	ErrSaveFailed                 = errors.New("pipeline: save failed")
	ErrReloadFailed               = errors.New("pipeline: reload failed")
	ErrDeleteFailed               = errors.New("pipeline: delete failed")
	ErrSaveInFlight               = errors.New("pipeline: save already in flight")
	ErrNodeBusy                   = errors.New("pipeline: node has an operation in flight")
	ErrNodeNotPersisted           = errors.New("pipeline: node has never been saved")
	ErrNodeIDConflict             = errors.New("pipeline: node id already in use")
	ErrRelationOptionsUnavailable = errors.New("pipeline: relation options unavailable")
)

// Store defines the contract for persisting pipelines on the backend side.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Pipelines
	CreatePipeline(ctx context.Context, name string) (*Pipeline, error)
	GetPipeline(ctx context.Context, pipelineID int64) (*Pipeline, error)
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	// ReplaceGraph swaps all nodes and edges of a pipeline. dynamic[i], when
	// present, holds the evaluated dynamic slots of p.Nodes[i].
	ReplaceGraph(ctx context.Context, pipelineID int64, p Payload, dynamic [][]Slot) (*Pipeline, error)
	DeletePipeline(ctx context.Context, pipelineID int64) error

	// Nodes
	AddNode(ctx context.Context, pipelineID int64, in NodeInput, dynamic []Slot) (int64, error)
	GetNode(ctx context.Context, pipelineID, nodeID int64) (*Node, error)
	UpdateNode(ctx context.Context, pipelineID, nodeID int64, in NodeInput, dynamic []Slot) error
	DeleteNode(ctx context.Context, pipelineID, nodeID int64) error

	// Devices
	UpsertDevice(ctx context.Context, d *Device) (int64, error)
	GetDevice(ctx context.Context, id int64) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
}
