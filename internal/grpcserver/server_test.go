package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/editor"
	"pdfedit/internal/logging"
	"pdfedit/internal/service"
)

type mockEdits struct {
	mock.Mock
}

func (m *mockEdits) Apply(ctx context.Context, req service.ApplyRequest) (*service.ApplyResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.ApplyResult)
	return res, args.Error(1)
}

func (m *mockEdits) ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	args := m.Called(ctx, documentID)
	res, _ := args.Get(0).([]domain.Version)
	return res, args.Error(1)
}

func startServer(t *testing.T, edits EditService) (*Server, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := New(edits, logging.Discard())
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.GracefulStop()
	})
	return srv, conn
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestApply(t *testing.T) {
	edits := new(mockEdits)
	_, conn := startServer(t, edits)
	docID := uuid.New()

	edits.On("Apply", mock.Anything, service.ApplyRequest{DocumentID: docID, BaseVersion: 2, Instruction: "delete page 1"}).
		Return(&service.ApplyResult{
			VersionNum:  3,
			BaseVersion: 2,
			URL:         "https://blob.test/v3",
			Actions:     []domain.Action{{Type: domain.ActionDeletePages, Pages: []int{1}}},
			Report:      &editor.Report{PagesBefore: 2, PagesAfter: 1, Applied: []string{"deleted pages 1"}},
		}, nil)

	in := mustStruct(t, map[string]interface{}{
		"document_id":     docID.String(),
		"current_version": 2,
		"message":         "delete page 1",
	})
	out := new(structpb.Struct)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Invoke(ctx, "/"+ServiceName+"/Apply", in, out))

	got := out.AsMap()
	assert.Equal(t, float64(3), got["version_num"])
	assert.Equal(t, "https://blob.test/v3", got["url"])
	assert.Equal(t, []interface{}{"deleted pages 1"}, got["applied"])

	actions := got["actions"].([]interface{})
	require.Len(t, actions, 1)
	assert.Equal(t, "delete_pages", actions[0].(map[string]interface{})["type"])

	edits.AssertExpectations(t)
}

func TestApplyErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "validation", err: apperr.NewValidationError("Cannot change text colors"), code: codes.InvalidArgument},
		{name: "not found", err: apperr.NewNotFoundError("PDF not found"), code: codes.NotFound},
		{name: "conflict", err: apperr.NewConflictError("retry", nil), code: codes.Aborted},
		{name: "upstream", err: apperr.NewUpstreamError("LLM request failed", nil), code: codes.Unavailable},
		{name: "plain error", err: assert.AnError, code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := new(mockEdits)
			_, conn := startServer(t, edits)
			edits.On("Apply", mock.Anything, mock.Anything).Return(nil, tt.err)

			in := mustStruct(t, map[string]interface{}{"document_id": uuid.NewString(), "message": "x"})
			err := conn.Invoke(context.Background(), "/"+ServiceName+"/Apply", in, new(structpb.Struct))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestApplyRejectsBadDocumentID(t *testing.T) {
	_, conn := startServer(t, new(mockEdits))

	in := mustStruct(t, map[string]interface{}{"document_id": "nope", "message": "x"})
	err := conn.Invoke(context.Background(), "/"+ServiceName+"/Apply", in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListVersions(t *testing.T) {
	edits := new(mockEdits)
	_, conn := startServer(t, edits)
	docID := uuid.New()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	edits.On("ListVersions", mock.Anything, docID).Return([]domain.Version{
		{DocumentID: docID, VersionNum: 2, BlobURL: "u2", SizeBytes: 20, CreatedAt: created},
		{DocumentID: docID, VersionNum: 1, BlobURL: "u1", SizeBytes: 10, CreatedAt: created},
	}, nil)

	in := mustStruct(t, map[string]interface{}{"document_id": docID.String()})
	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(context.Background(), "/"+ServiceName+"/ListVersions", in, out))

	versions := out.AsMap()["versions"].([]interface{})
	require.Len(t, versions, 2)
	first := versions[0].(map[string]interface{})
	assert.Equal(t, float64(2), first["version_num"])
	assert.Equal(t, "u2", first["url"])
	assert.Equal(t, "2024-05-01T12:00:00Z", first["created_at"])
}

func TestHealth(t *testing.T) {
	srv, conn := startServer(t, new(mockEdits))
	client := healthpb.NewHealthClient(conn)

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	srv.health.Shutdown()

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))

	err := toStatus(apperr.NewValidationError("bad", "pages missing"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "bad: pages missing", status.Convert(err).Message())

	existing := status.Error(codes.PermissionDenied, "no")
	assert.Equal(t, existing, toStatus(existing))
}
