package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

type PostHandler struct {
	svc    service.PostService
	logger *slog.Logger
}

func NewPostHandler(svc service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{svc: svc, logger: logger}
}

type PostResponse struct {
	ID              uint64  `json:"id"`
	UserID          uint64  `json:"user_id"`
	Title           string  `json:"title"`
	ItemType        string  `json:"item_type"`
	Size            string  `json:"size"`
	ConditionStatus string  `json:"condition_status"`
	Price           float64 `json:"price"`
	ContactInfo     string  `json:"contact_info"`
	ImageURL        *string `json:"image_url"`
	Status          string  `json:"status"`
	SellerUsername  string  `json:"seller_username,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type PostListResponse struct {
	Posts []PostResponse `json:"posts"`
	Total int64          `json:"total"`
}

// PostRequest is the JSON form of a create or update. Multipart requests
// carry the same field names.
type PostRequest struct {
	UserID          *flexID     `json:"user_id"`
	Title           string      `json:"title"`
	ItemType        string      `json:"item_type"`
	Size            string      `json:"size"`
	ConditionStatus string      `json:"condition_status"`
	Price           json.Number `json:"price"`
	ContactInfo     string      `json:"contact_info"`
	ImageURL        *string     `json:"image_url"`
	ImageURLCamel   *string     `json:"imageUrl"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readPost decodes a create or update request. A non-empty error string
// is a client error.
func (h *PostHandler) readPost(c echo.Context) (*PostRequest, *service.ImageUpload, string) {
	if !isMultipart(c) {
		var req PostRequest
		if err := c.Bind(&req); err != nil {
			return nil, nil, "invalid json"
		}
		if req.ImageURL == nil {
			req.ImageURL = req.ImageURLCamel
		}
		return &req, nil, ""
	}

	req := &PostRequest{
		Title:           c.FormValue("title"),
		ItemType:        c.FormValue("item_type"),
		Size:            c.FormValue("size"),
		ConditionStatus: c.FormValue("condition_status"),
		Price:           json.Number(strings.TrimSpace(c.FormValue("price"))),
		ContactInfo:     c.FormValue("contact_info"),
	}
	if raw := strings.TrimSpace(c.FormValue("user_id")); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			return nil, nil, "invalid user_id"
		}
		fid := flexID(id)
		req.UserID = &fid
	}
	if v := c.FormValue("image_url"); v != "" {
		req.ImageURL = &v
	}

	fh, err := c.FormFile("image")
	if err != nil || fh.Size == 0 {
		return req, nil, ""
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, "failed to read image"
	}
	// the multipart temp file is removed by echo once the request ends
	return req, &service.ImageUpload{Filename: fh.Filename, Body: f}, ""
}

func (req *PostRequest) input() (service.PostInput, string) {
	price, err := strconv.ParseFloat(req.Price.String(), 64)
	if err != nil {
		return service.PostInput{}, "invalid price"
	}
	return service.PostInput{
		Title:           req.Title,
		ItemType:        req.ItemType,
		Size:            req.Size,
		ConditionStatus: req.ConditionStatus,
		Price:           price,
		ContactInfo:     req.ContactInfo,
		ImageURL:        req.ImageURL,
	}, ""
}

func (h *PostHandler) Create(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	req, img, msg := h.readPost(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	if img != nil {
		if closer, ok := img.Body.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}
	if impersonates(uid, req.UserID.ptr()) {
		return forbiddenUser(c)
	}
	in, msg := req.input()
	if msg != "" {
		return badRequest(c, msg)
	}
	p, err := h.svc.Create(c.Request().Context(), uid, in, img)
	if err != nil {
		return writeError(c, h.logger, err, "failed to create post")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Post created successfully",
		"postId":  p.ID,
		"post":    toPostResponse(p, ""),
	})
}

func (h *PostHandler) Update(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	req, img, msg := h.readPost(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	if img != nil {
		if closer, ok := img.Body.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}
	if impersonates(uid, req.UserID.ptr()) {
		return forbiddenUser(c)
	}
	in, msg := req.input()
	if msg != "" {
		return badRequest(c, msg)
	}
	p, err := h.svc.Update(c.Request().Context(), uid, id, in, img)
	if err != nil {
		return writeError(c, h.logger, err, "failed to update post")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Post updated successfully",
		"post":    toPostResponse(p, ""),
	})
}

func (h *PostHandler) UpdateStatus(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), uid, id, req.Status); err != nil {
		return writeError(c, h.logger, err, "failed to update post status")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Post status updated successfully",
		"status":  req.Status,
	})
}

func (h *PostHandler) Delete(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return writeError(c, h.logger, err, "failed to delete post")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}

func (h *PostHandler) Get(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	p, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch post")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Product details retrieved successfully",
		"product": toPostResponse(&p.Post, p.SellerUsername),
	})
}

func (h *PostHandler) Image(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	url, err := h.svc.ImageURL(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch image")
	}
	return c.JSON(http.StatusOK, echo.Map{"image_url": url})
}

// multiValue collects a repeatable query parameter, also splitting
// comma-separated values.
func multiValue(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryFloat(c echo.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func (h *PostHandler) List(c echo.Context) error {
	q := service.BrowseQuery{
		ItemTypes: multiValue(c, "itemType"),
		Sizes:     multiValue(c, "size"),
		Condition: c.QueryParam("condition"),
		Status:    c.QueryParam("status"),
		Sort:      c.QueryParam("sort"),
	}
	var ok bool
	if q.MinPrice, ok = queryFloat(c, "minPrice"); !ok {
		return badRequest(c, "invalid minPrice")
	}
	if q.MaxPrice, ok = queryFloat(c, "maxPrice"); !ok {
		return badRequest(c, "invalid maxPrice")
	}
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	q.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	rows, total, err := h.svc.Browse(c.Request().Context(), q)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch posts")
	}
	resp := PostListResponse{
		Posts: make([]PostResponse, 0, len(rows)),
		Total: total,
	}
	for i := range rows {
		resp.Posts = append(resp.Posts, toPostResponse(&rows[i].Post, rows[i].SellerUsername))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) ListMine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	posts, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch posts")
	}
	resp := make([]PostResponse, 0, len(posts))
	for i := range posts {
		resp = append(resp, toPostResponse(&posts[i], ""))
	}
	return c.JSON(http.StatusOK, echo.Map{"posts": resp})
}

func (h *PostHandler) GetMine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid id")
	}
	p, err := h.svc.GetOwned(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch post")
	}
	return c.JSON(http.StatusOK, echo.Map{"post": toPostResponse(p, "")})
}

func toPostResponse(p *model.Post, seller string) PostResponse {
	return PostResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		Title:           p.Title,
		ItemType:        p.ItemType,
		Size:            p.Size,
		ConditionStatus: p.ConditionStatus,
		Price:           p.Price,
		ContactInfo:     p.ContactInfo,
		ImageURL:        p.ImageURL,
		Status:          string(p.Status),
		SellerUsername:  seller,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}
