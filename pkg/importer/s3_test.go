package importer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3ListPrefixSkipsFolderMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/creatives", r.URL.Path)
		assert.Equal(t, "batch7/", r.URL.Query().Get("prefix"))

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
	<Name>creatives</Name>
	<Prefix>batch7/</Prefix>
	<KeyCount>3</KeyCount>
	<IsTruncated>false</IsTruncated>
	<Contents><Key>batch7/</Key></Contents>
	<Contents><Key>batch7/video1_game_en_30s_1080x1080.mp4</Key></Contents>
	<Contents><Key>batch7/video2_game_en_30s_1080x1080.mp4</Key></Contents>
</ListBucketResult>`)
	}))
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  aws.AnonymousCredentials{},
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
	})

	f := NewS3FetcherWithClient(client)
	locations, err := f.List(context.Background(), Location{Scheme: "s3", Ref: "creatives/batch7/", Folder: true})
	require.NoError(t, err)

	// The folder marker key never becomes an import item
	require.Len(t, locations, 2)
	assert.Equal(t, "creatives/batch7/video1_game_en_30s_1080x1080.mp4", locations[0].Ref)
	assert.Equal(t, "video2_game_en_30s_1080x1080.mp4", locations[1].Name)
}
