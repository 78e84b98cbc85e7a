package importer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestGCSListPrefixSkipsFolderMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/b/creatives/o", r.URL.Path)
		assert.Equal(t, "batch7/", r.URL.Query().Get("prefix"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"kind":"storage#objects","items":[
			{"name":"batch7/","bucket":"creatives"},
			{"name":"batch7/video1_game_en_30s_1080x1080.mp4","bucket":"creatives"},
			{"name":"batch7/video2_game_en_30s_1080x1080.mp4","bucket":"creatives"}
		]}`)
	}))
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication())
	require.NoError(t, err)

	f := NewGCSFetcherWithClient(client)
	locations, err := f.List(context.Background(), Location{Scheme: "gcs", Ref: "creatives/batch7/", Folder: true})
	require.NoError(t, err)

	// The folder marker object never becomes an import item
	require.Len(t, locations, 2)
	assert.Equal(t, "creatives/batch7/video1_game_en_30s_1080x1080.mp4", locations[0].Ref)
	assert.Equal(t, "video2_game_en_30s_1080x1080.mp4", locations[1].Name)
}

func TestGCSListRejectsEmptyBucket(t *testing.T) {
	f := NewGCSFetcherWithClient(nil)
	_, err := f.List(context.Background(), Location{Scheme: "gcs", Ref: "", Folder: true})
	require.Error(t, err)
}
