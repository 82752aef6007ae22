package app

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"qwery/internal/apperr"
	"qwery/internal/datasource"
	"qwery/internal/model"
	"qwery/internal/pkg/slug"
)

type NotebookService struct {
	notebooks   NotebookRepository
	datasources DatasourceRepository
	executor    QueryExecutor
	access      access
	markdown    goldmark.Markdown
}

func NewNotebookService(orgs OrganizationRepository, projects ProjectRepository, notebooks NotebookRepository, datasources DatasourceRepository, executor QueryExecutor) *NotebookService {
	return &NotebookService{
		notebooks:   notebooks,
		datasources: datasources,
		executor:    executor,
		access:      access{orgs: orgs, projects: projects},
		markdown:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

type CreateNotebookInput struct {
	UserID      string
	ProjectID   string
	Title       string
	Description string
	Cells       []model.Cell
	Datasources []string
}

// UpdateNotebookInput replaces the fields that are set. When Version is set
// it must match the stored version.
type UpdateNotebookInput struct {
	UserID      string
	ID          string
	Title       *string
	Description *string
	Cells       *[]model.Cell
	Datasources *[]string
	Version     *int
}

type RunCellInput struct {
	UserID     string
	NotebookID string
	CellID     int
	Limit      int
}

type RunCellOutput struct {
	CellID       int                `json:"cell_id"`
	DatasourceID string             `json:"datasource_id"`
	Result       *datasource.Result `json:"result"`
}

func (s *NotebookService) Create(ctx context.Context, input CreateNotebookInput) (*NotebookOutput, error) {
	project, err := s.access.project(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	title, err := requireText("title", input.Title)
	if err != nil {
		return nil, err
	}
	cells, err := normalizeCells(input.Cells)
	if err != nil {
		return nil, err
	}
	if err := s.attachCells(ctx, project.ID, cells); err != nil {
		return nil, err
	}
	datasources, err := attachDatasources(ctx, s.datasources, project.ID, input.Datasources)
	if err != nil {
		return nil, err
	}

	nb := &model.Notebook{
		ProjectID:   project.ID,
		Title:       title,
		Slug:        slug.Make(title),
		Description: input.Description,
		Cells:       cells,
		Datasources: datasources,
		Version:     1,
		CreatedBy:   input.UserID,
		UpdatedBy:   input.UserID,
	}
	if err := s.notebooks.Create(ctx, nb); err != nil {
		return nil, err
	}
	return newNotebookOutput(nb), nil
}

func (s *NotebookService) Get(ctx context.Context, userID, idOrSlug string) (*NotebookOutput, error) {
	nb, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}
	return newNotebookOutput(nb), nil
}

func (s *NotebookService) ListByProject(ctx context.Context, userID, projectID string) ([]*NotebookOutput, error) {
	project, err := s.access.project(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	list, err := s.notebooks.ListByProjectID(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*NotebookOutput, 0, len(list))
	for i := range list {
		out = append(out, newNotebookOutput(&list[i]))
	}
	return out, nil
}

func (s *NotebookService) Update(ctx context.Context, input UpdateNotebookInput) (*NotebookOutput, error) {
	nb, err := s.load(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}
	expected := nb.Version
	if input.Version != nil && *input.Version != expected {
		return nil, apperr.Conflict(fmt.Sprintf("notebook was modified: version %d, expected %d", expected, *input.Version))
	}
	if input.Title != nil {
		title, err := requireText("title", *input.Title)
		if err != nil {
			return nil, err
		}
		if title != nb.Title {
			nb.Title = title
			nb.Slug = slug.Make(title)
		}
	}
	if input.Description != nil {
		nb.Description = *input.Description
	}
	if input.Cells != nil {
		cells, err := normalizeCells(*input.Cells)
		if err != nil {
			return nil, err
		}
		if err := s.attachCells(ctx, nb.ProjectID, cells); err != nil {
			return nil, err
		}
		nb.Cells = cells
	}
	if input.Datasources != nil {
		datasources, err := attachDatasources(ctx, s.datasources, nb.ProjectID, *input.Datasources)
		if err != nil {
			return nil, err
		}
		nb.Datasources = datasources
	}
	nb.Version = expected + 1
	nb.UpdatedBy = input.UserID
	if err := s.notebooks.Update(ctx, nb, expected); err != nil {
		return nil, err
	}
	return newNotebookOutput(nb), nil
}

func (s *NotebookService) Delete(ctx context.Context, userID, idOrSlug string) error {
	nb, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return err
	}
	return s.notebooks.Delete(ctx, nb.ID)
}

// RunCell executes a query cell against its first datasource, falling back
// to the notebook's first datasource.
func (s *NotebookService) RunCell(ctx context.Context, input RunCellInput) (*RunCellOutput, error) {
	nb, err := s.load(ctx, input.UserID, input.NotebookID)
	if err != nil {
		return nil, err
	}
	cell, ok := nb.Cell(input.CellID)
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("notebook has no cell %d", input.CellID))
	}
	if cell.CellType != model.CellTypeQuery {
		return nil, apperr.BadRequest(fmt.Sprintf("cell %d is a %s cell", cell.CellID, cell.CellType))
	}
	if strings.TrimSpace(cell.Query) == "" {
		return nil, apperr.BadRequest(fmt.Sprintf("cell %d has no query", cell.CellID))
	}

	var dsID string
	switch {
	case len(cell.Datasources) > 0:
		dsID = cell.Datasources[0]
	case len(nb.Datasources) > 0:
		dsID = nb.Datasources[0]
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("cell %d has no datasource", cell.CellID))
	}
	ds, err := resolveDatasource(ctx, s.datasources, nb.ProjectID, dsID)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Query(ctx, ds, cell.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &RunCellOutput{CellID: cell.CellID, DatasourceID: ds.ID, Result: result}, nil
}

// ExportHTML renders the notebook as a standalone HTML page. Text cells are
// markdown; query and prompt cells are shown verbatim.
func (s *NotebookService) ExportHTML(ctx context.Context, userID, idOrSlug string) ([]byte, error) {
	nb, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", html.EscapeString(nb.Title))
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", html.EscapeString(nb.Title))
	if nb.Description != "" {
		fmt.Fprintf(&buf, "<p>%s</p>\n", html.EscapeString(nb.Description))
	}
	for _, cell := range nb.Cells {
		fmt.Fprintf(&buf, "<section class=\"cell cell-%s\" data-cell-id=\"%d\">\n", html.EscapeString(cell.CellType), cell.CellID)
		switch cell.CellType {
		case model.CellTypeText:
			if err := s.markdown.Convert([]byte(cell.Query), &buf); err != nil {
				return nil, fmt.Errorf("render cell %d: %w", cell.CellID, err)
			}
		case model.CellTypePrompt:
			fmt.Fprintf(&buf, "<blockquote>%s</blockquote>\n", html.EscapeString(cell.Query))
		default:
			fmt.Fprintf(&buf, "<pre><code class=\"language-sql\">%s</code></pre>\n", html.EscapeString(cell.Query))
		}
		buf.WriteString("</section>\n")
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// attachCells resolves each cell's datasource references in place.
func (s *NotebookService) attachCells(ctx context.Context, projectID string, cells []model.Cell) error {
	for i := range cells {
		ids, err := attachDatasources(ctx, s.datasources, projectID, cells[i].Datasources)
		if err != nil {
			return err
		}
		cells[i].Datasources = ids
	}
	return nil
}

func (s *NotebookService) load(ctx context.Context, userID, idOrSlug string) (*model.Notebook, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	nb, err := s.notebooks.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if nb == nil {
		if nb, err = s.notebooks.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if nb == nil {
		return nil, apperr.NotFound(apperr.CodeNotebookNotFound, "notebook", idOrSlug)
	}
	if err := s.access.child(ctx, userID, nb.ProjectID, apperr.CodeNotebookNotFound, "notebook", idOrSlug); err != nil {
		return nil, err
	}
	return nb, nil
}

// normalizeCells fills defaults and assigns ids to new cells. Cell ids must
// be unique within a notebook.
func normalizeCells(cells []model.Cell) ([]model.Cell, error) {
	out := make([]model.Cell, len(cells))
	seen := make(map[int]bool, len(cells))
	next := 1
	for _, c := range cells {
		if c.CellID >= next {
			next = c.CellID + 1
		}
	}
	for i, c := range cells {
		if c.CellID <= 0 {
			c.CellID = next
			next++
		}
		if seen[c.CellID] {
			return nil, apperr.BadRequest(fmt.Sprintf("duplicate cell id %d", c.CellID))
		}
		seen[c.CellID] = true

		switch c.CellType {
		case "":
			c.CellType = model.CellTypeQuery
		case model.CellTypeQuery, model.CellTypeText, model.CellTypePrompt:
		default:
			return nil, apperr.BadRequest("unknown cell type: " + c.CellType)
		}
		if c.RunMode == "" {
			c.RunMode = model.RunModeDefault
		}
		if c.Datasources == nil {
			c.Datasources = []string{}
		}
		out[i] = c
	}
	return out, nil
}
