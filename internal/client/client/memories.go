package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/toukan/toukan/internal/client/models"
)

type memoryDTO struct {
	ID          string              `json:"id"`
	Title       *string             `json:"title"`
	Status      models.MemoryStatus `json:"status"`
	AudioURL    string              `json:"audio_url"`
	Transcript  *string             `json:"transcript"`
	Summary     *string             `json:"summary"`
	KeyPoints   []string            `json:"key_points"`
	ActionItems []string            `json:"action_items"`
	Duration    *float64            `json:"duration"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

type memoryListDTO struct {
	Items    []memoryDTO `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	HasNext  bool        `json:"has_next"`
}

func (d *memoryDTO) toModel() (models.Memory, error) {
	created, err := ParseTimestamp(d.CreatedAt)
	if err != nil {
		return models.Memory{}, err
	}
	updated, err := ParseTimestamp(d.UpdatedAt)
	if err != nil {
		return models.Memory{}, err
	}
	return models.Memory{
		ID:          d.ID,
		Title:       d.Title,
		Status:      d.Status,
		AudioURL:    d.AudioURL,
		Transcript:  d.Transcript,
		Summary:     d.Summary,
		KeyPoints:   d.KeyPoints,
		ActionItems: d.ActionItems,
		Duration:    d.Duration,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// List returns one page of memories.
func (c *MemoryClient) List(ctx context.Context, p models.ListParams) (*models.MemoryList, error) {
	q := map[string]string{}
	if p.Page > 0 {
		q["page"] = strconv.Itoa(p.Page)
	}
	if p.PageSize > 0 {
		q["page_size"] = strconv.Itoa(p.PageSize)
	}
	if p.Search != "" {
		q["search"] = p.Search
	}
	if p.Status != "" {
		q["status"] = string(p.Status)
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParams(q).Get("/memories")
	if err != nil {
		return nil, unavailable(err)
	}
	if !resp.IsSuccess() {
		return nil, badResponse(resp)
	}

	var dto memoryListDTO
	if err := decode(resp.Body(), &dto); err != nil {
		return nil, err
	}

	out := &models.MemoryList{
		Items:    make([]models.Memory, 0, len(dto.Items)),
		Total:    dto.Total,
		Page:     dto.Page,
		PageSize: dto.PageSize,
		HasNext:  dto.HasNext,
	}
	for i := range dto.Items {
		m, err := dto.Items[i].toModel()
		if err != nil {
			return nil, &DecodeError{Raw: resp.Body(), Err: err}
		}
		out.Items = append(out.Items, m)
	}
	return out, nil
}

// Get returns one memory, or ErrNotFound.
func (c *MemoryClient) Get(ctx context.Context, id string) (*models.Memory, error) {
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).Get("/memories/{id}")
	if err != nil {
		return nil, unavailable(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if !resp.IsSuccess() {
		return nil, badResponse(resp)
	}
	return decodeMemory(resp.Body())
}

// RetryProcessing asks the backend to reprocess a memory. The backend may
// answer with the memory itself or with an upload-style acknowledgement; in
// the latter case the memory is fetched.
func (c *MemoryClient) RetryProcessing(ctx context.Context, id string) (*models.Memory, error) {
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).Post("/process/{id}")
	if err != nil {
		return nil, unavailable(err)
	}
	if !resp.IsSuccess() {
		return nil, badResponse(resp)
	}

	var shape struct {
		ID       string `json:"id"`
		MemoryID string `json:"memory_id"`
	}
	if err := decode(resp.Body(), &shape); err != nil {
		return nil, err
	}
	if shape.ID == "" && shape.MemoryID != "" {
		return c.Get(ctx, shape.MemoryID)
	}
	return decodeMemory(resp.Body())
}

// Delete removes a memory on the backend.
func (c *MemoryClient) Delete(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).Delete("/memories/{id}")
	if err != nil {
		return unavailable(err)
	}
	if !resp.IsSuccess() {
		return badResponse(resp)
	}
	return nil
}

func decodeMemory(raw []byte) (*models.Memory, error) {
	var dto memoryDTO
	if err := decode(raw, &dto); err != nil {
		return nil, err
	}
	m, err := dto.toModel()
	if err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	return &m, nil
}
