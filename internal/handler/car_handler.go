package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/optional"
	"carmarket/backend/pkg/response"
)

type CarHandler struct {
	carService service.CarService
	pager      Pager
}

func NewCarHandler(carService service.CarService, pager Pager) *CarHandler {
	return &CarHandler{carService: carService, pager: pager}
}

type CarListQuery struct {
	Q          string `form:"q"`
	Make       string `form:"make" binding:"omitempty,max=100"`
	Model      string `form:"model" binding:"omitempty,max=100"`
	Condition  string `form:"condition" binding:"omitempty,oneof=new used certified"`
	Location   string `form:"location" binding:"omitempty,max=150"`
	YearFrom   *int   `form:"year_from"`
	YearTo     *int   `form:"year_to"`
	PriceMin   string `form:"price_min" binding:"omitempty,numeric"`
	PriceMax   string `form:"price_max" binding:"omitempty,numeric"`
	MileageMax *int   `form:"mileage_max" binding:"omitempty,min=0"`
	Sort       string `form:"sort"`
}

func (q CarListQuery) filter(page, perPage int) service.CarFilter {
	return service.CarFilter{
		Keyword:    q.Q,
		Make:       q.Make,
		Model:      q.Model,
		Condition:  q.Condition,
		Location:   q.Location,
		YearFrom:   q.YearFrom,
		YearTo:     q.YearTo,
		PriceMin:   decimalQuery(q.PriceMin),
		PriceMax:   decimalQuery(q.PriceMax),
		MileageMax: q.MileageMax,
		Sort:       q.Sort,
		Page:       page,
		PerPage:    perPage,
	}
}

func decimalQuery(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

type CarImageRequest struct {
	Alt      *string `json:"alt" binding:"omitempty,max=150"`
	IsCover  *bool   `json:"is_cover"`
	Position *int    `json:"position" binding:"omitempty,min=0"`
}

type CreateCarRequest struct {
	Make        string            `json:"make" binding:"required,max=100"`
	Model       string            `json:"model" binding:"required,max=100"`
	Year        int               `json:"year" binding:"required"`
	Price       *decimal.Decimal  `json:"price" binding:"required"`
	Mileage     *int              `json:"mileage" binding:"omitempty,min=0"`
	Condition   string            `json:"condition" binding:"required,oneof=new used certified"`
	Location    *string           `json:"location" binding:"omitempty,max=150"`
	Description *string           `json:"description"`
	Images      []CarImageRequest `json:"images" binding:"omitempty,dive"`
}

// UpdateCarRequest is a partial update; mileage, location and description
// may be cleared with an explicit null.
type UpdateCarRequest struct {
	Make        *string                `json:"make" binding:"omitempty,min=1,max=100"`
	Model       *string                `json:"model" binding:"omitempty,min=1,max=100"`
	Year        *int                   `json:"year"`
	Price       *decimal.Decimal       `json:"price"`
	Mileage     optional.Field[int]    `json:"mileage" binding:"omitempty,min=0"`
	Condition   *string                `json:"condition" binding:"omitempty,oneof=new used certified"`
	Location    optional.Field[string] `json:"location" binding:"omitempty,max=150"`
	Description optional.Field[string] `json:"description"`
}

type RejectCarRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

type carLister func(ctx context.Context, p *service.Principal, f service.CarFilter) ([]model.Car, int64, error)

func (h *CarHandler) list(c *gin.Context, list carLister) {
	var q CarListQuery
	if !bindQuery(c, &q) {
		return
	}
	page, perPage := h.pager.parse(c)
	cars, total, err := list(c.Request.Context(), principal(c), q.filter(page, perPage))
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, cars, page, perPage, total)
}

func (h *CarHandler) List(c *gin.Context)         { h.list(c, h.carService.List) }
func (h *CarHandler) ListApproved(c *gin.Context) { h.list(c, h.carService.ListApproved) }
func (h *CarHandler) ListRejected(c *gin.Context) { h.list(c, h.carService.ListRejected) }
func (h *CarHandler) ListTrashed(c *gin.Context)  { h.list(c, h.carService.ListTrashed) }

// PublicList serves approved listings to anonymous visitors.
func (h *CarHandler) PublicList(c *gin.Context) {
	var q CarListQuery
	if !bindQuery(c, &q) {
		return
	}
	page, perPage := h.pager.parse(c)
	cars, total, err := h.carService.PublicList(c.Request.Context(), q.filter(page, perPage))
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, cars, page, perPage, total)
}

func (h *CarHandler) PublicShow(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	car, err := h.carService.PublicShow(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}

func (h *CarHandler) Show(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	car, err := h.carService.Show(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}

func (h *CarHandler) Create(c *gin.Context) {
	var req CreateCarRequest
	if !bindJSON(c, &req) {
		return
	}

	in := service.CarInput{
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Price:       *req.Price,
		Mileage:     req.Mileage,
		Condition:   model.CarCondition(req.Condition),
		Location:    req.Location,
		Description: req.Description,
	}
	for _, img := range req.Images {
		in.Images = append(in.Images, service.ImageMeta{Alt: img.Alt, IsCover: img.IsCover, Position: img.Position})
	}

	car, err := h.carService.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, car)
}

func (h *CarHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateCarRequest
	if !bindJSON(c, &req) {
		return
	}

	ch := service.CarChanges{
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Price:       req.Price,
		Mileage:     req.Mileage,
		Location:    req.Location,
		Description: req.Description,
	}
	if req.Condition != nil {
		cond := model.CarCondition(*req.Condition)
		ch.Condition = &cond
	}

	car, err := h.carService.Update(c.Request.Context(), principal(c), id, ch)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}

func (h *CarHandler) Destroy(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.carService.Destroy(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Car deleted.")
}

func (h *CarHandler) Restore(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	car, err := h.carService.Restore(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}

func (h *CarHandler) Force(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.carService.Force(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Car permanently deleted.")
}

func (h *CarHandler) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	car, err := h.carService.Approve(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}

func (h *CarHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req RejectCarRequest
	if !bindJSON(c, &req) {
		return
	}
	car, err := h.carService.Reject(c.Request.Context(), principal(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, car)
}
