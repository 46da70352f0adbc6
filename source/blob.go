//go:build membuf_blob

// This file only builds with -tags membuf_blob, and is exercised by the
// build-tag-gated integration test in blob_integration_test.go rather than
// the default suite (it needs network access and a real blob URL).
package source

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/pkg/errors"
)

// Blob is a Source backed by a single Azure Storage blob, read via ranged
// HTTP GETs. It's the highest-latency, least-fast-seekable source the filter
// is built to sit in front of, which is exactly the case the prebuffer
// filter exists for: absorb short backward seeks and sequential re-reads
// without round-tripping to the service.
type Blob struct {
	client *azblob.Client
	container, blob string
	size   int64
	pos    int64
}

// OpenBlob stats the blob to learn its size, refusing to engage if the
// properties call fails (mirrors source.OpenFile's refusal on a failed
// Stat).
func OpenBlob(ctx context.Context, serviceURL, container, blob string, cred azblob.SharedKeyCredential) (*Blob, error) {
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, &cred, nil)
	if err != nil {
		return nil, errors.Wrap(err, "source: creating blob client")
	}
	props, err := client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "source: getting blob properties")
	}
	if props.ContentLength == nil {
		return nil, errors.New("source: blob reports unknown size")
	}
	return &Blob{client: client, container: container, blob: blob, size: *props.ContentLength}, nil
}

func (b *Blob) Read(ctx context.Context, p []byte) (int, error) {
	count := int64(len(p))
	if b.pos+count > b.size {
		count = b.size - b.pos
	}
	if count <= 0 {
		return 0, nil
	}
	resp, err := b.client.DownloadStream(ctx, b.container, b.blob, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: b.pos, Count: count},
	})
	if err != nil {
		return 0, errors.Wrap(err, "source: downloading blob range")
	}
	defer resp.Body.Close()
	n := 0
	for n < int(count) {
		m, rerr := resp.Body.Read(p[n:count])
		n += m
		if rerr != nil {
			break
		}
	}
	b.pos += int64(n)
	return n, nil
}

func (b *Blob) Seek(ctx context.Context, offset int64) (int64, error) {
	if offset < 0 || offset > b.size {
		return b.pos, errors.New("source: seek out of range")
	}
	b.pos = offset
	return b.pos, nil
}

func (b *Blob) Tell() int64 { return b.pos }
func (b *Blob) Size() int64 { return b.size }

// CanSeek is true: ranged GETs make arbitrary repositioning possible, just
// expensive — exactly the cost the prebuffer filter is designed to amortize.
func (b *Blob) CanSeek() bool { return true }

// CanFastSeek is false: every seek past the short-seek-absorption window
// costs a new HTTP request, unlike source.File's in-process lseek.
func (b *Blob) CanFastSeek() bool { return false }
