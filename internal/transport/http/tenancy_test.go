package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwery/internal/apperr"
)

func (s *testServer) notebook(token, projectID, dsID string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/projects/"+projectID+"/notebooks", token, map[string]any{
		"title":       "Revenue",
		"description": "Totals & trends",
		"datasources": []string{dsID},
		"cells": []map[string]any{
			{"cell_type": "text", "query": "# Revenue\nTotal by **order**"},
			{"cell_type": "query", "query": "SELECT SUM(total) AS revenue FROM orders WHERE total < 100"},
		},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeID(s.t, env)
}

func TestNotebookExportAndRunOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ada")
	projectID := s.project(token)
	dsID := s.datasource(token, projectID, s.warehouse("warehouse.db"))
	notebookID := s.notebook(token, projectID, dsID)

	rec, _ := s.do(http.MethodGet, "/api/notebooks/"+notebookID+"/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	page := rec.Body.String()
	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<title>Revenue</title>")
	assert.Contains(t, page, "<p>Totals &amp; trends</p>")
	assert.Contains(t, page, "<strong>order</strong>")
	assert.Contains(t, page, `<code class="language-sql">SELECT SUM(total) AS revenue FROM orders WHERE total &lt; 100</code>`)

	rec, env := s.do(http.MethodPost, "/api/notebooks/"+notebookID+"/cells/2/run", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run struct {
		DatasourceID string `json:"datasource_id"`
		Result       struct {
			Rows [][]any `json:"rows"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, dsID, run.DatasourceID)
	require.Len(t, run.Result.Rows, 1)
	assert.EqualValues(t, 42, run.Result.Rows[0][0])

	rec, env = s.do(http.MethodPatch, "/api/notebooks/"+notebookID, token, map[string]any{"title": "Revenue 2024", "version": 7})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeConflict, env.Code)
}

func TestOtherTenantsGetNotFound(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("ada")
	projectID := s.project(ada)
	dsID := s.datasource(ada, projectID, s.warehouse("warehouse.db"))
	notebookID := s.notebook(ada, projectID, dsID)
	conversationID := s.conversation(ada, projectID, dsID)
	rec, env := s.do(http.MethodPost, "/api/conversations/"+conversationID+"/messages?run=false", ada, map[string]any{
		"role": "assistant", "content": "Orders live in the orders table.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	messageID := decodeID(t, env)

	eve := s.register("eve")
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"list project notebooks", http.MethodGet, "/api/projects/" + projectID + "/notebooks", nil, apperr.CodeProjectNotFound},
		{"create notebook", http.MethodPost, "/api/projects/" + projectID + "/notebooks", map[string]any{"title": "Mine"}, apperr.CodeProjectNotFound},
		{"get notebook", http.MethodGet, "/api/notebooks/" + notebookID, nil, apperr.CodeNotebookNotFound},
		{"update notebook", http.MethodPatch, "/api/notebooks/" + notebookID, map[string]any{"title": "Mine"}, apperr.CodeNotebookNotFound},
		{"run cell", http.MethodPost, "/api/notebooks/" + notebookID + "/cells/2/run", nil, apperr.CodeNotebookNotFound},
		{"export notebook", http.MethodGet, "/api/notebooks/" + notebookID + "/export", nil, apperr.CodeNotebookNotFound},
		{"delete notebook", http.MethodDelete, "/api/notebooks/" + notebookID, nil, apperr.CodeNotebookNotFound},
		{"list datasources", http.MethodGet, "/api/datasources?projectId=" + projectID, nil, apperr.CodeProjectNotFound},
		{"get datasource", http.MethodGet, "/api/datasources/" + dsID, nil, apperr.CodeDatasourceNotFound},
		{"update datasource", http.MethodPatch, "/api/datasources/" + dsID, map[string]any{"name": "Mine"}, apperr.CodeDatasourceNotFound},
		{"test datasource", http.MethodPost, "/api/datasources/" + dsID + "/test", nil, apperr.CodeDatasourceNotFound},
		{"delete datasource", http.MethodDelete, "/api/datasources/" + dsID, nil, apperr.CodeDatasourceNotFound},
		{"list messages", http.MethodGet, "/api/conversations/" + conversationID + "/messages", nil, apperr.CodeConversationNotFound},
		{"store message", http.MethodPost, "/api/conversations/" + conversationID + "/messages?run=false", map[string]any{"content": "x"}, apperr.CodeConversationNotFound},
		{"get message", http.MethodGet, "/api/messages/" + messageID, nil, apperr.CodeMessageNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := s.do(tc.method, tc.path, eve, tc.body)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, env.Code)
		})
	}

	rec, _ = s.do(http.MethodGet, "/api/notebooks/"+notebookID, ada, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/datasources/"+dsID, ada, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = s.do(http.MethodGet, "/api/conversations/"+conversationID+"/messages", ada, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), messageID)
}
