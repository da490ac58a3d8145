package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/csvask/internal/domain/relay"
)

// MinioOptions configures a MinioCatalog.
type MinioOptions struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix scopes the catalog to a "directory" inside the bucket.
	Prefix string
}

// MinioCatalog serves CSV objects from an S3-compatible bucket.
// The bucket is never created or written to.
type MinioCatalog struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioCatalog connects to MinIO and checks that the bucket exists.
func NewMinioCatalog(ctx context.Context, opts MinioOptions) (*MinioCatalog, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", opts.Bucket)
	}

	return &MinioCatalog{client: cli, bucket: opts.Bucket, prefix: normalizePrefix(opts.Prefix)}, nil
}

// Resolve stats the object named fileID under the prefix.
func (c *MinioCatalog) Resolve(ctx context.Context, fileID string) (relay.ResolvedFile, error) {
	if !validName(fileID) {
		return relay.ResolvedFile{}, notFound(fileID)
	}
	key := c.prefix + fileID

	info, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return relay.ResolvedFile{}, notFound(fileID)
		}
		return relay.ResolvedFile{}, fmt.Errorf("stat %s: %w", key, err)
	}

	return relay.ResolvedFile{
		Name:        fileID,
		Location:    key,
		ContentType: relay.ContentTypeCSV,
		Size:        info.Size,
	}, nil
}

// Open streams the object. The caller must close the returned reader.
func (c *MinioCatalog) Open(ctx context.Context, f relay.ResolvedFile) (io.ReadCloser, error) {
	if !strings.HasPrefix(f.Location, c.prefix) {
		return nil, notFound(f.Name)
	}
	obj, err := c.client.GetObject(ctx, c.bucket, f.Location, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound(f.Name)
		}
		return nil, fmt.Errorf("get %s: %w", f.Location, err)
	}
	return obj, nil
}

// List returns the .csv objects directly under the prefix, sorted by name.
func (c *MinioCatalog) List(ctx context.Context) ([]relay.FileEntry, error) {
	var files []relay.FileEntry
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: c.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing bucket %s: %w", c.bucket, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, c.prefix)
		if !validName(name) || !isCSV(name) {
			continue
		}
		files = append(files, relay.FileEntry{
			Name:       name,
			Size:       obj.Size,
			ModifiedAt: obj.LastModified.UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
