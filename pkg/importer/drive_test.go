package importer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/supercrema/adforge/pkg/clients"
)

func driveTestService(t *testing.T, handler http.Handler) *drive.Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication())
	require.NoError(t, err)
	return svc
}

func TestDriveListFolderPaginates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		q := r.URL.Query()
		assert.Contains(t, q.Get("q"), "'folder1' in parents")
		assert.Contains(t, q.Get("q"), "video/")

		w.Header().Set("Content-Type", "application/json")
		if q.Get("pageToken") == "" {
			fmt.Fprint(w, `{"files":[
				{"id":"f1","name":"video1_puzzlequest_en_30s_1080x1080.mp4"},
				{"id":"f2","name":"video2_puzzlequest_en_30s_1080x1080.mp4"}
			],"nextPageToken":"page2"}`)
			return
		}
		assert.Equal(t, "page2", q.Get("pageToken"))
		fmt.Fprint(w, `{"files":[{"id":"f3","name":"video3_puzzlequest_en_30s_1080x1080.mp4"}]}`)
	})

	f := NewDriveFetcherWithService(driveTestService(t, handler))
	locations, err := f.ListFolder(context.Background(), "folder1")
	require.NoError(t, err)

	require.Len(t, locations, 3)
	assert.Equal(t, Location{Scheme: "drive", Ref: "f1", Name: "video1_puzzlequest_en_30s_1080x1080.mp4"}, locations[0])
	assert.Equal(t, "f3", locations[2].Ref)
}

func TestDriveFolderLocationExpands(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files":[{"id":"f1","name":"video1_puzzlequest_en_30s_1080x1080.mp4"}]}`)
	})

	f := NewDriveFetcherWithService(driveTestService(t, handler))
	imp := New(t.TempDir(), 2, clients.NoRetryPolicy(), f)

	locations, err := imp.Expand(context.Background(), []Location{
		{Scheme: "drive", Ref: "folder1", Folder: true},
	})
	require.NoError(t, err)

	require.Len(t, locations, 1)
	assert.Equal(t, "drive", locations[0].Scheme)
	assert.Equal(t, "f1", locations[0].Ref)
	assert.Equal(t, "video1_puzzlequest_en_30s_1080x1080.mp4", locations[0].Name)
}
