package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pdfedit/internal/service"
)

type editServer interface {
	apply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	listVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var editServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*editServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: unaryHandler("Apply", editServer.apply)},
		{MethodName: "ListVersions", Handler: unaryHandler("ListVersions", editServer.listVersions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pdfedit/v1/edit.proto",
}

type structMethod func(editServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call structMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + name

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(editServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(editServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func (s *Server) apply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	docID, err := uuid.Parse(fields["document_id"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "document_id must be a UUID")
	}

	res, err := s.edits.Apply(ctx, service.ApplyRequest{
		DocumentID:  docID,
		BaseVersion: int(fields["current_version"].GetNumberValue()),
		Instruction: fields["message"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	actions, err := toList(res.Actions)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	out := map[string]interface{}{
		"version_num":  res.VersionNum,
		"base_version": res.BaseVersion,
		"url":          res.URL,
		"actions":      actions,
	}
	if res.Report != nil {
		applied := make([]interface{}, len(res.Report.Applied))
		for i, line := range res.Report.Applied {
			applied[i] = line
		}
		out["applied"] = applied
		out["pages_after"] = res.Report.PagesAfter
	}

	return newStruct(out)
}

func (s *Server) listVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuid.Parse(in.GetFields()["document_id"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "document_id must be a UUID")
	}

	versions, err := s.edits.ListVersions(ctx, docID)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]interface{}, 0, len(versions))
	for _, v := range versions {
		list = append(list, map[string]interface{}{
			"version_num": v.VersionNum,
			"url":         v.BlobURL,
			"size_bytes":  v.SizeBytes,
			"created_at":  v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return newStruct(map[string]interface{}{
		"document_id": docID.String(),
		"versions":    list,
	})
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	return out, nil
}

// toList converts v to the generic shape structpb accepts by going through JSON.
func toList(v interface{}) ([]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var list []interface{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []interface{}{}
	}
	return list, nil
}
