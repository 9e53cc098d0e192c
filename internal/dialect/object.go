package dialect

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/objects"
)

// ObjectHandler implements the REST+XML path-style Object API. It is
// registered as the chi not-found fallback so that every path not claimed
// by the Function or root-dispatch routes (see server package) lands here,
// matching §6's "all other paths" selector.
type ObjectHandler struct {
	store *objects.Store
}

// NewObjectHandler builds an ObjectHandler.
func NewObjectHandler(store *objects.Store) *ObjectHandler {
	return &ObjectHandler{store: store}
}

// ServeHTTP splits the path into /{bucket}/{key...} and dispatches by
// method and whether a key is present.
func (h *ObjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		h.dispatchRoot(w, r)
		return
	}
	bucket, key, hasKey := strings.Cut(path, "/")

	switch {
	case !hasKey && r.Method == http.MethodPut:
		h.createBucket(w, r, bucket)
	case !hasKey && r.Method == http.MethodHead:
		h.headBucket(w, r, bucket)
	case !hasKey && r.Method == http.MethodDelete:
		h.deleteBucket(w, r, bucket)
	case !hasKey && r.Method == http.MethodGet:
		h.listObjects(w, r, bucket)
	case hasKey && r.Method == http.MethodPut:
		h.putObject(w, r, bucket, key)
	case hasKey && r.Method == http.MethodGet:
		h.getObject(w, r, bucket, key)
	case hasKey && r.Method == http.MethodHead:
		h.headObject(w, r, bucket, key)
	case hasKey && r.Method == http.MethodDelete:
		h.deleteObject(w, r, bucket, key)
	default:
		WriteXMLError(w, apierr.InvalidArgumentf("MethodNotAllowed", "unsupported method %s for this path", r.Method))
	}
}

func (h *ObjectHandler) dispatchRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteXMLError(w, apierr.InvalidArgumentf("MethodNotAllowed", "unsupported method %s for /", r.Method))
		return
	}
	h.listBuckets(w, r)
}

type listAllMyBucketsResult struct {
	XMLName xml.Name    `xml:"ListAllMyBucketsResult"`
	Buckets []bucketXML `xml:"Buckets>Bucket"`
}

type bucketXML struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

func (h *ObjectHandler) listBuckets(w http.ResponseWriter, r *http.Request) {
	buckets := h.store.ListBuckets()
	out := listAllMyBucketsResult{}
	for _, b := range buckets {
		out.Buckets = append(out.Buckets, bucketXML{Name: b.Name, CreationDate: b.CreationTime.Format(awsTimeFormat)})
	}
	writeXML(w, http.StatusOK, out)
}

func (h *ObjectHandler) createBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	if _, err := h.store.CreateBucket(bucket); err != nil {
		WriteXMLError(w, err)
		return
	}
	w.Header().Set("Location", "/"+bucket)
	w.WriteHeader(http.StatusOK)
}

func (h *ObjectHandler) headBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	if err := h.store.HeadBucket(bucket); err != nil {
		WriteXMLError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ObjectHandler) deleteBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	if err := h.store.DeleteBucket(bucket); err != nil {
		WriteXMLError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listBucketResult struct {
	XMLName               xml.Name    `xml:"ListBucketResult"`
	Name                  string      `xml:"Name"`
	Prefix                string      `xml:"Prefix"`
	KeyCount              int         `xml:"KeyCount"`
	MaxKeys               int         `xml:"MaxKeys"`
	IsTruncated           bool        `xml:"IsTruncated"`
	NextContinuationToken string      `xml:"NextContinuationToken,omitempty"`
	Contents              []objectXML `xml:"Contents"`
}

type objectXML struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
}

func (h *ObjectHandler) listObjects(w http.ResponseWriter, r *http.Request, bucket string) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	maxKeys := 0
	if v := q.Get("max-keys"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteXMLError(w, apierr.InvalidArgumentf("InvalidArgument", "max-keys must be an integer"))
			return
		}
		maxKeys = n
	}
	res, err := h.store.ListV2(bucket, prefix, maxKeys, q.Get("continuation-token"))
	if err != nil {
		WriteXMLError(w, err)
		return
	}
	out := listBucketResult{
		Name:                  bucket,
		Prefix:                prefix,
		KeyCount:              len(res.Keys),
		MaxKeys:               maxKeys,
		IsTruncated:           res.IsTruncated,
		NextContinuationToken: res.NextContinuationToken,
	}
	for _, o := range res.Keys {
		out.Contents = append(out.Contents, objectXML{
			Key:          o.Key,
			LastModified: o.LastModified.Format(awsTimeFormat),
			ETag:         fmt.Sprintf("%q", o.ETag),
			Size:         len(o.Body),
		})
	}
	writeXML(w, http.StatusOK, out)
}

func (h *ObjectHandler) putObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteXMLError(w, apierr.InvalidArgumentf("InvalidRequest", "unreadable request body"))
		return
	}
	obj, err := h.store.PutObject(bucket, key, body, r.Header.Get("Content-Type"))
	if err != nil {
		WriteXMLError(w, err)
		return
	}
	w.Header().Set("ETag", fmt.Sprintf("%q", obj.ETag))
	w.WriteHeader(http.StatusOK)
}

func (h *ObjectHandler) getObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	obj, err := h.store.GetObject(bucket, key)
	if err != nil {
		WriteXMLError(w, err)
		return
	}
	w.Header().Set("ETag", fmt.Sprintf("%q", obj.ETag))
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Last-Modified", obj.LastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}

func (h *ObjectHandler) headObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	obj, err := h.store.HeadObject(bucket, key)
	if err != nil {
		WriteXMLError(w, err)
		return
	}
	w.Header().Set("ETag", fmt.Sprintf("%q", obj.ETag))
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Last-Modified", obj.LastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (h *ObjectHandler) deleteObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if err := h.store.DeleteObject(bucket, key); err != nil {
		WriteXMLError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(v)
}

const awsTimeFormat = "2006-01-02T15:04:05.000Z"
