package meta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/metrics"
	"github.com/supercrema/adforge/pkg/platform/core"
)

// uploadSession is the Graph response to an upload start/transfer call.
// Offsets arrive as strings.
type uploadSession struct {
	SessionID   string `json:"upload_session_id"`
	VideoID     string `json:"video_id"`
	StartOffset string `json:"start_offset"`
	EndOffset   string `json:"end_offset"`
}

// UploadVideo transfers an asset with the Graph resumable protocol:
// a start phase opens a session, transfer phases send the byte range the
// server asks for next, and the finish phase publishes. Failed chunks
// retry from the server-reported offset, so nothing restarts from zero.
// Returns only after server-side processing completes.
func (a *Adapter) UploadVideo(ctx context.Context, req core.UploadRequest) (core.RemoteHandle, error) {
	asset := req.Asset
	asset.MarkUploading()

	file, err := os.Open(asset.Path)
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeFile, "open staged video")
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeFile, "stat staged video")
	}
	fileSize := stat.Size()

	// Start phase
	startForm := url.Values{}
	startForm.Set("upload_phase", "start")
	startForm.Set("file_size", strconv.FormatInt(fileSize, 10))

	var session uploadSession
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/advideos", startForm, &session)
	})
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, err
	}

	a.logger.Debug("upload session opened",
		zap.String("video_id", session.VideoID),
		zap.String("filename", asset.Filename),
		zap.Int64("bytes", fileSize))

	// Transfer phases, driven by the offsets the server returns
	start, _ := strconv.ParseInt(session.StartOffset, 10, 64)
	end, _ := strconv.ParseInt(session.EndOffset, 10, 64)

	for start < end {
		chunk := make([]byte, end-start)
		if _, err := file.ReadAt(chunk, start); err != nil && err != io.EOF {
			asset.MarkFailed()
			return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeFile, "read video chunk")
		}

		var next uploadSession
		err = a.uploadRetry.ExecuteWithCondition(ctx, func() error {
			terr := a.transferChunk(ctx, session.SessionID, start, chunk, &next)
			if terr != nil {
				a.collector.IncRetry("video_transfer")
			}
			return terr
		}, errors.IsRetryable)
		if err != nil {
			asset.MarkFailed()
			return core.RemoteHandle{}, err
		}

		a.collector.AddUploadBytes(int64(len(chunk)))

		start, _ = strconv.ParseInt(next.StartOffset, 10, 64)
		end, _ = strconv.ParseInt(next.EndOffset, 10, 64)
	}

	// Finish phase
	finishForm := url.Values{}
	finishForm.Set("upload_phase", "finish")
	finishForm.Set("upload_session_id", session.SessionID)
	finishForm.Set("title", asset.Filename)
	finishForm.Set("content_category", contentCategory)

	var finish struct {
		Success bool `json:"success"`
	}
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/advideos", finishForm, &finish)
	})
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, err
	}

	if err := a.waitForProcessing(ctx, session.VideoID); err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, err
	}

	asset.SetRemoteHandle(session.VideoID)
	metrics.AssetsUploaded.WithLabelValues(Network, "success").Inc()
	a.logger.Info("video uploaded",
		zap.String("video_id", session.VideoID),
		zap.String("filename", asset.Filename))

	return core.RemoteHandle{ID: session.VideoID, Kind: "video"}, nil
}

// transferChunk sends one byte range as a multipart transfer phase.
func (a *Adapter) transferChunk(ctx context.Context, sessionID string, offset int64, chunk []byte, out *uploadSession) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("access_token", a.token)
	_ = writer.WriteField("upload_phase", "transfer")
	_ = writer.WriteField("upload_session_id", sessionID)
	_ = writer.WriteField("start_offset", strconv.FormatInt(offset, 10))

	part, err := writer.CreateFormFile("video_file_chunk", "chunk")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "build chunk form")
	}
	if _, err := part.Write(chunk); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "write chunk form")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "close chunk form")
	}

	resp, err := a.http.Post(ctx, a.baseURL+"/act_"+a.accountID+"/advideos", &body, map[string]string{
		"Content-Type": writer.FormDataContentType(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "chunk transfer failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyResponse(resp)
	}
	return decodeJSON(resp.Body, out)
}

// Video status values that mean processing finished.
var readyStatuses = map[string]bool{
	"READY": true, "FINISHED": true, "COMPLETE": true,
}

// waitForProcessing polls the video status until the network reports it
// ready, with a growing interval (1s, x1.5, capped at 8s) bounded by the
// configured processing-wait timeout.
func (a *Adapter) waitForProcessing(ctx context.Context, videoID string) error {
	deadline := time.Now().Add(a.cfg.Timeouts.ProcessingWait)
	interval := time.Second

	for {
		var status struct {
			Status struct {
				VideoStatus string `json:"video_status"`
			} `json:"status"`
		}

		params := url.Values{}
		params.Set("fields", "status")
		if err := a.getJSON(ctx, "/"+videoID, params, &status); err != nil {
			if !errors.IsRetryable(err) {
				return err
			}
			// transient poll failures just wait for the next tick
		} else {
			vs := status.Status.VideoStatus
			if readyStatuses[vs] {
				return nil
			}
			if vs == "ERROR" {
				return errors.Newf(errors.ErrorTypeRejection, "video %s failed server-side processing", videoID)
			}
		}

		if time.Now().After(deadline) {
			return errors.Newf(errors.ErrorTypeTimeout, "video %s still processing after %s", videoID, a.cfg.Timeouts.ProcessingWait)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "processing wait cancelled")
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * 1.5)
		if interval > 8*time.Second {
			interval = 8 * time.Second
		}
	}
}

// UploadThumbnail uploads a poster frame to the account's ad images and
// returns its hash handle.
func (a *Adapter) UploadThumbnail(ctx context.Context, imagePath string) (core.RemoteHandle, error) {
	data, err := os.ReadFile(imagePath) //nolint:gosec // G304: staged file path
	if err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeFile, "read thumbnail")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("access_token", a.token)

	name := filepath.Base(imagePath)
	part, err := writer.CreateFormFile("filename", name)
	if err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeInternal, "build image form")
	}
	if _, err := part.Write(data); err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeInternal, "write image form")
	}
	if err := writer.Close(); err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeInternal, "close image form")
	}

	var uploaded struct {
		Images map[string]struct {
			Hash string `json:"hash"`
			URL  string `json:"url"`
		} `json:"images"`
	}

	err = a.retry.ExecuteRetryable(ctx, func() error {
		resp, perr := a.http.Post(ctx, a.baseURL+"/act_"+a.accountID+"/adimages", bytes.NewReader(body.Bytes()), map[string]string{
			"Content-Type": writer.FormDataContentType(),
		})
		if perr != nil {
			return errors.Wrap(perr, errors.ErrorTypeConnection, "image upload failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return classifyResponse(resp)
		}
		return decodeJSON(resp.Body, &uploaded)
	})
	if err != nil {
		return core.RemoteHandle{}, err
	}

	for _, img := range uploaded.Images {
		return core.RemoteHandle{ID: img.Hash, Kind: "image"}, nil
	}
	return core.RemoteHandle{}, errors.New(errors.ErrorTypeInternal, "image upload returned no images")
}

// ExtractPosterFrame pulls the first frame of a video into a JPEG next
// to the staged file, for use as the upload thumbnail. Requires ffmpeg
// on PATH.
func ExtractPosterFrame(ctx context.Context, videoPath string) (string, error) {
	out := videoPath + ".poster.jpg"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-loglevel", "error",
		"-ss", "0", "-i", videoPath,
		"-frames:v", "1", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("extract poster frame: %s", bytes.TrimSpace(output)))
	}
	return out, nil
}
