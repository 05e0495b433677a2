package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"connectrpc.com/grpcreflect"
	"github.com/gorilla/mux"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// LaunchServiceName is the fully-qualified name of the launch RPC service
	LaunchServiceName = "launchpad.v1.LaunchService"

	// LaunchServiceGetSnapshotProcedure returns the full launch snapshot
	LaunchServiceGetSnapshotProcedure = "/launchpad.v1.LaunchService/GetSnapshot"
	// LaunchServicePostStatusProcedure appends a launch status
	LaunchServicePostStatusProcedure = "/launchpad.v1.LaunchService/PostStatus"
	// LaunchServiceUpdateLaunchProcedure merges launch fields
	LaunchServiceUpdateLaunchProcedure = "/launchpad.v1.LaunchService/UpdateLaunch"
)

var (
	launchServiceOnce sync.Once
	launchServiceDesc protoreflect.ServiceDescriptor
	launchServiceErr  error
)

// launchServiceDescriptor registers the service schema with the global
// registry. Requests and responses are google.protobuf.Struct.
func launchServiceDescriptor() (protoreflect.ServiceDescriptor, error) {
	launchServiceOnce.Do(func() {
		method := func(name string) *descriptorpb.MethodDescriptorProto {
			return &descriptorpb.MethodDescriptorProto{
				Name:       proto.String(name),
				InputType:  proto.String(".google.protobuf.Struct"),
				OutputType: proto.String(".google.protobuf.Struct"),
			}
		}
		fdp := &descriptorpb.FileDescriptorProto{
			Name:       proto.String("launchpad/v1/launch.proto"),
			Package:    proto.String("launchpad.v1"),
			Dependency: []string{"google/protobuf/struct.proto"},
			Syntax:     proto.String("proto3"),
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("LaunchService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					method("GetSnapshot"),
					method("PostStatus"),
					method("UpdateLaunch"),
				},
			}},
		}

		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			launchServiceErr = fmt.Errorf("build launch service descriptor: %w", err)
			return
		}
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			launchServiceErr = fmt.Errorf("register launch service descriptor: %w", err)
			return
		}
		launchServiceDesc = fd.Services().ByName("LaunchService")
	})
	return launchServiceDesc, launchServiceErr
}

// LaunchService exposes the launch app over Connect RPC. Callers authenticate
// with an `Authorization: Bearer <token>` header.
type LaunchService struct {
	app        *launch.App
	authorizer *Authorizer
}

// NewLaunchService creates the RPC service
func NewLaunchService(app *launch.App, authorizer *Authorizer) *LaunchService {
	return &LaunchService{app: app, authorizer: authorizer}
}

// RegisterRoutes mounts the service handlers and reflection on r
func (s *LaunchService) RegisterRoutes(r *mux.Router) error {
	sd, err := launchServiceDescriptor()
	if err != nil {
		return err
	}
	methods := sd.Methods()

	r.Handle(LaunchServiceGetSnapshotProcedure, connect.NewUnaryHandler(
		LaunchServiceGetSnapshotProcedure,
		s.GetSnapshot,
		connect.WithSchema(methods.ByName("GetSnapshot")),
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
	))
	r.Handle(LaunchServicePostStatusProcedure, connect.NewUnaryHandler(
		LaunchServicePostStatusProcedure,
		s.PostStatus,
		connect.WithSchema(methods.ByName("PostStatus")),
	))
	r.Handle(LaunchServiceUpdateLaunchProcedure, connect.NewUnaryHandler(
		LaunchServiceUpdateLaunchProcedure,
		s.UpdateLaunch,
		connect.WithSchema(methods.ByName("UpdateLaunch")),
	))

	// Setup reflection for grpcui/grpcurl
	reflector := grpcreflect.NewStaticReflector(LaunchServiceName)
	path, handler := grpcreflect.NewHandlerV1(reflector)
	r.PathPrefix(path).Handler(handler)
	path, handler = grpcreflect.NewHandlerV1Alpha(reflector)
	r.PathPrefix(path).Handler(handler)

	log.Info().Str("service", LaunchServiceName).Msg("launch service routes registered")
	return nil
}

// GetSnapshot returns the activity flag, launch state and all statuses
func (s *LaunchService) GetSnapshot(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	snapshot, err := s.app.Snapshot(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return structResponse(snapshot)
}

// PostStatus appends a launch status. Requires the privileged role.
func (s *LaunchService) PostStatus(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in AppStatusPayload
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connectError(err)
	}

	status, err := s.app.PostStatus(ctx, s.actor(ctx, req.Header()), launch.StatusInput{
		Text:      in.Text,
		Countdown: in.Countdown,
		Timestamp: in.Timestamp,
		Extra:     in.Extra,
	})
	if err != nil {
		return nil, connectError(err)
	}
	return structResponse(status)
}

// UpdateLaunch merges fields into the launch state. Requires the moderator role.
func (s *LaunchService) UpdateLaunch(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in LaunchUpdatePayload
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connectError(err)
	}

	stored, err := s.app.UpdateLaunch(ctx, s.actor(ctx, req.Header()), in.Fields)
	if err != nil {
		return nil, connectError(err)
	}
	return structResponse(stored)
}

func (s *LaunchService) actor(ctx context.Context, header http.Header) models.Actor {
	return s.authorizer.Classify(ctx, bearerToken(header.Get("Authorization")))
}

// fromStruct decodes a Struct message into v with the same strictness as
// WebSocket messages
func fromStruct(msg *structpb.Struct, v interface{}) error {
	if msg == nil {
		return fmt.Errorf("request body is required: %w", launch.ErrInvalidArgument)
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return decodeStrict(data, v)
}

// toStruct converts any JSON-encodable value into a Struct message
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func structResponse(v interface{}) (*connect.Response[structpb.Struct], error) {
	msg, err := toStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	return connect.NewResponse(msg), nil
}

// connectError maps launch errors to Connect codes
func connectError(err error) error {
	switch {
	case errors.Is(err, launch.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, launch.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, launch.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, launch.ErrDecode):
		return connect.NewError(connect.CodeDataLoss, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
