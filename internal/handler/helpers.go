package handler

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"carmarket/backend/internal/config"
	"carmarket/backend/internal/handler/middleware"
	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/optional"
	"carmarket/backend/pkg/response"
)

func principal(c *gin.Context) *service.Principal {
	return middleware.PrincipalFrom(c)
}

// writeError maps a service error kind onto a status and body. Unexpected
// errors are attached to the context for the request logger.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Unprocessable(c, "The given data was invalid.", verr.Fields)
	case errors.Is(err, service.ErrIncorrectPassword):
		response.Unprocessable(c, "The given data was invalid.", map[string]string{"current_password": err.Error()})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrUnknownReference):
		response.Unprocessable(c, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, "Unauthenticated.")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, "Invalid credentials.")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "This action is unauthorized.")
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "Not found.")
	case errors.Is(err, service.ErrDuplicateEmail):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c, "Server error.")
	}
}

// bindJSON decodes the body into req and answers 400 or 422 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			name := fieldName(fe)
			if _, ok := fields[name]; !ok {
				fields[name] = validationMessage(name, fe)
			}
		}
		response.Unprocessable(c, "The given data was invalid.", fields)
		return
	}
	response.BadRequest(c, "invalid request: "+err.Error())
}

// fieldName strips the struct prefix so nested fields read like images.0.alt.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.NewReplacer("[", ".", "]", "").Replace(ns)
	return ns
}

func validationMessage(field string, fe validator.FieldError) string {
	label := strings.ReplaceAll(field, "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", label)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", label)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s may not be greater than %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", label)
	case "eqfield":
		return fmt.Sprintf("The %s does not match.", label)
	case "datetime":
		return fmt.Sprintf("The %s does not match the format %s.", label, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", label)
	}
}

// RegisterValidation teaches gin's validator to report json field names and
// to look inside optional fields.
func RegisterValidation() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	v.RegisterCustomTypeFunc(optionalValue, optional.Field[string]{}, optional.Field[int]{})
	return nil
}

func optionalValue(field reflect.Value) interface{} {
	if g, ok := field.Interface().(interface{ Get() interface{} }); ok {
		return g.Get()
	}
	return nil
}

// Pager clamps page and per_page query parameters.
type Pager struct {
	DefaultPerPage int
	MaxPerPage     int
}

func NewPager(cfg config.PaginationConfig) Pager {
	p := Pager{DefaultPerPage: cfg.DefaultPerPage, MaxPerPage: cfg.MaxPerPage}
	if p.DefaultPerPage <= 0 {
		p.DefaultPerPage = 15
	}
	if p.MaxPerPage <= 0 {
		p.MaxPerPage = 100
	}
	return p
}

func (p Pager) parse(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.Query("per_page"))
	if perPage < 1 {
		perPage = p.DefaultPerPage
	}
	if perPage > p.MaxPerPage {
		perPage = p.MaxPerPage
	}
	return page, perPage
}

func paginated(c *gin.Context, data interface{}, page, perPage int, total int64) {
	response.Paginated(c, data, response.NewPageMeta(page, perPage, total))
}

// uuidParam parses a path parameter. A malformed id is reported as not found.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.NotFound(c, "Not found.")
		return uuid.Nil, false
	}
	return id, true
}

// imageTypes is the upload allow-list: sniffed MIME type to stored extension.
var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// sniffImage detects the type of r from its content and reports the allow-list
// entry it matches.
func sniffImage(r io.Reader) (contentType, ext string, ok bool) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", "", false
	}
	for t, e := range imageTypes {
		if mtype.Is(t) {
			return t, e, true
		}
	}
	return mtype.String(), "", false
}

// formImage reads an uploaded image, checking its size and sniffed type.
// Callers must close the returned body.
func formImage(c *gin.Context, field string, maxBytes int64) (service.Upload, func(), bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		response.Unprocessable(c, "The given data was invalid.", map[string]string{field: fmt.Sprintf("The %s field is required.", field)})
		return service.Upload{}, nil, false
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		response.Unprocessable(c, "The given data was invalid.", map[string]string{
			field: fmt.Sprintf("The %s may not be greater than %d kilobytes.", field, maxBytes>>10),
		})
		return service.Upload{}, nil, false
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open upload: %w", err))
		return service.Upload{}, nil, false
	}
	contentType, ext, ok := sniffImage(f)
	if !ok {
		f.Close()
		response.Unprocessable(c, "The given data was invalid.", map[string]string{field: fmt.Sprintf("The %s must be an image.", field)})
		return service.Upload{}, nil, false
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		writeError(c, fmt.Errorf("rewind upload: %w", err))
		return service.Upload{}, nil, false
	}
	if e := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), "."); e == "jpeg" || e == ext {
		ext = e
	}
	return service.Upload{Body: f, Ext: ext, ContentType: contentType}, func() { f.Close() }, true
}
