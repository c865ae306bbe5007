package deploy

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/metrics"
	"github.com/shipsite/shipsite/internal/stage"
	"github.com/shipsite/shipsite/internal/tree"
)

const tracerName = "github.com/shipsite/shipsite/internal/deploy"

// DefaultConcurrency is the number of parallel uploads when none is set.
const DefaultConcurrency = 4

// Options configures a deploy run. It is copied into the Deployer and not
// changed afterwards.
type Options struct {
	// Src is the local directory to upload.
	Src string

	// Bucket is the destination bucket.
	Bucket string

	// Prefix is prepended to every object key.
	Prefix string

	// Concurrency is the number of parallel uploads. Default: 4.
	Concurrency int

	// RateLimit caps requests per second (0 = unlimited).
	RateLimit float64

	// CacheControl is sent with every object when set.
	CacheControl string

	// ACL is the canned ACL applied to every object when set.
	ACL string

	// GzipExtensions lists the extensions the gzip stage compresses. Files
	// with these extensions holding gzip data are uploaded with
	// Content-Encoding: gzip. Default: config.DefaultGzipExtensions.
	GzipExtensions []string

	// DryRun compares against the bucket but uploads nothing.
	DryRun bool

	// Verbose logs every object at info level instead of debug.
	Verbose bool

	// Logger receives deploy logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records uploads. May be nil.
	Metrics *metrics.Metrics

	// OnUpload is called once per object with its key and result
	// (metrics.ResultUploaded or metrics.ResultSkipped). It may be called
	// from several goroutines.
	OnUpload func(key, result string)
}

// Result summarizes a deploy run.
type Result struct {
	// Duration is how long the deploy took.
	Duration time.Duration

	// Uploaded lists the keys that were uploaded (or would be, in a dry run).
	Uploaded []string

	// Skipped lists the keys whose remote copy was already current.
	Skipped []string

	// Bytes is the total size of the uploaded objects.
	Bytes int64
}

// Deployer uploads a directory to a bucket.
type Deployer struct {
	opts    Options
	client  Uploader
	limiter *rate.Limiter
	gzipExt func(string) bool
}

// New creates a Deployer.
func New(opts Options, client Uploader) *Deployer {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GzipExtensions == nil {
		opts.GzipExtensions = config.DefaultGzipExtensions
	}
	d := &Deployer{
		opts:    opts,
		client:  client,
		gzipExt: stage.ExtMatcher(opts.GzipExtensions),
	}
	if opts.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return d
}

// Deploy uploads every file below Src. An empty directory uploads nothing.
func (d *Deployer) Deploy(ctx context.Context) (*Result, error) {
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "deploy")
	defer span.End()
	span.SetAttributes(
		attribute.String("deploy.bucket", d.opts.Bucket),
		attribute.String("deploy.prefix", d.opts.Prefix),
		attribute.Bool("deploy.dry_run", d.opts.DryRun),
	)

	result, err := d.deploy(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("deploy.uploaded", len(result.Uploaded)),
		attribute.Int("deploy.skipped", len(result.Skipped)),
	)
	d.opts.Metrics.ObserveDeploy(result.Duration)

	d.opts.Logger.Info("deploy complete",
		"bucket", d.opts.Bucket,
		"uploaded", len(result.Uploaded),
		"skipped", len(result.Skipped),
		"bytes", result.Bytes,
		"dry_run", d.opts.DryRun,
		"duration", result.Duration)
	return result, nil
}

func (d *Deployer) deploy(ctx context.Context) (*Result, error) {
	if d.opts.Bucket == "" {
		return nil, errors.New("E223")
	}
	info, err := os.Stat(d.opts.Src)
	if err != nil {
		return nil, errors.New("E220").WithDetail("Looked for " + d.opts.Src).Wrap(err)
	}
	if !info.IsDir() {
		return nil, errors.New("E220").WithDetail(d.opts.Src + " is not a directory")
	}

	files, err := tree.Load(d.opts.Src, nil)
	if err != nil {
		return nil, errors.New("E220").WithDetail("Failed to read " + d.opts.Src).Wrap(err)
	}

	result := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, rel := range files.Paths() {
		f, _ := files.Get(rel)
		obj := newObject(d.opts.Prefix, rel, f.Data, d.gzipExt)
		g.Go(func() error {
			uploaded, err := d.sync(gctx, obj)
			if err != nil {
				d.opts.Metrics.ObserveUpload(metrics.ResultFailed, 0)
				return err
			}

			res := metrics.ResultSkipped
			if uploaded {
				res = metrics.ResultUploaded
			}
			d.opts.Metrics.ObserveUpload(res, int64(len(obj.Data)))
			d.logObject(obj, res)
			if d.opts.OnUpload != nil {
				d.opts.OnUpload(obj.Key, res)
			}

			mu.Lock()
			defer mu.Unlock()
			if uploaded {
				result.Uploaded = append(result.Uploaded, obj.Key)
				result.Bytes += int64(len(obj.Data))
			} else {
				result.Skipped = append(result.Skipped, obj.Key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.Uploaded)
	sort.Strings(result.Skipped)
	return result, nil
}

// sync uploads obj unless the bucket already holds identical content.
// It reports whether an upload was needed.
func (d *Deployer) sync(ctx context.Context, obj object) (bool, error) {
	current, err := d.current(ctx, obj)
	if err != nil {
		return false, err
	}
	if current {
		return false, nil
	}
	if d.opts.DryRun {
		return true, nil
	}

	if err := d.wait(ctx); err != nil {
		return false, err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(d.opts.Bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		ContentMD5:    aws.String(obj.ContentMD5()),
	}
	if obj.ContentEncoding != "" {
		input.ContentEncoding = aws.String(obj.ContentEncoding)
	}
	if d.opts.CacheControl != "" {
		input.CacheControl = aws.String(d.opts.CacheControl)
	}
	if d.opts.ACL != "" {
		input.ACL = types.ObjectCannedACL(d.opts.ACL)
	}
	if _, err := d.client.PutObject(ctx, input); err != nil {
		return false, errors.New("E222").
			WithDetail("Failed to upload " + obj.Path + " to s3://" + d.opts.Bucket + "/" + obj.Key).
			Wrap(err)
	}
	return true, nil
}

// current reports whether the remote object matches obj.
func (d *Deployer) current(ctx context.Context, obj object) (bool, error) {
	if err := d.wait(ctx); err != nil {
		return false, err
	}
	head, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.opts.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.New("E224").
			WithDetail("Failed to look up s3://" + d.opts.Bucket + "/" + obj.Key).
			Wrap(err)
	}
	return aws.ToString(head.ETag) == obj.ETag() &&
		aws.ToString(head.ContentEncoding) == obj.ContentEncoding, nil
}

func (d *Deployer) wait(ctx context.Context) error {
	if d.limiter == nil {
		return ctx.Err()
	}
	return d.limiter.Wait(ctx)
}

func (d *Deployer) logObject(obj object, res string) {
	level := slog.LevelDebug
	if d.opts.Verbose {
		level = slog.LevelInfo
	}
	d.opts.Logger.Log(context.Background(), level, res,
		"key", obj.Key,
		"size", len(obj.Data),
		"content_type", obj.ContentType)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if stderrors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
