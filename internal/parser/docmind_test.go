package parser

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

func newDocMindTestClient(endpoint string, pageSize int) *DocMindClient {
    return &DocMindClient{
        cfg: &config.DocMindConfig{
            Endpoint: endpoint,
            APIKey:   "test-key",
            Timeout:  5 * time.Second,
            PageSize: pageSize,
        },
        httpClient: &http.Client{Timeout: 5 * time.Second},
        log:        logger.NewTestLogger(),
    }
}

func TestDocMindClient_SubmitPollFetch(t *testing.T) {
    var pollCalls atomic.Int32

    mux := http.NewServeMux()
    mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
        require.NoError(t, r.ParseMultipartForm(1<<20))

        _, header, err := r.FormFile("file")
        require.NoError(t, err)
        assert.Equal(t, "膳食指南.pdf", header.Filename)
        assert.Equal(t, "pdf", r.FormValue("file_type"))

        json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
    })
    mux.HandleFunc("/api/v1/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        status := "processing"
        if pollCalls.Add(1) > 1 {
            status = "success"
        }
        json.NewEncoder(w).Encode(map[string]string{"status": status})
    })
    mux.HandleFunc("/api/v1/jobs/job-1/result", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        page := r.URL.Query().Get("page")
        assert.Equal(t, "2", r.URL.Query().Get("page_size"))

        resp := resultResponse{Total: 3}
        switch page {
        case "1":
            resp.Layouts = []models.LayoutElement{
                {Type: models.LayoutTitle, Markdown: "第一章"},
                {Type: models.LayoutParagraph, Markdown: "第一段"},
            }
        case "2":
            resp.Layouts = []models.LayoutElement{
                {Type: models.LayoutParagraph, Markdown: "第二段"},
            }
        default:
            t.Errorf("unexpected page %q", page)
        }
        json.NewEncoder(w).Encode(resp)
    })

    srv := httptest.NewServer(mux)
    defer srv.Close()

    client := newDocMindTestClient(srv.URL, 2)
    ctx := context.Background()

    jobID, err := client.Submit(ctx, strings.NewReader("%PDF-1.4 fake"), "膳食指南.pdf")
    require.NoError(t, err)
    assert.Equal(t, "job-1", jobID)

    status, err := client.Poll(ctx, jobID)
    require.NoError(t, err)
    assert.Equal(t, JobProcessing, status)

    status, err = client.Poll(ctx, jobID)
    require.NoError(t, err)
    assert.Equal(t, JobSuccess, status)

    doc, err := client.FetchResult(ctx, jobID)
    require.NoError(t, err)
    require.Len(t, doc.Layouts, 3)
    assert.Equal(t, "第一章", doc.Layouts[0].Markdown)
    assert.Equal(t, "第一段", doc.Layouts[1].Markdown)
    assert.Equal(t, "第二段", doc.Layouts[2].Markdown)
}

func TestDocMindClient_SubmitRejectsUnsupportedFormat(t *testing.T) {
    var requests atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        requests.Add(1)
    }))
    defer srv.Close()

    client := newDocMindTestClient(srv.URL, 10)

    _, err := client.Submit(context.Background(), strings.NewReader("data"), "photo.png")
    require.Error(t, err)

    var formatErr *UnsupportedFormatError
    require.ErrorAs(t, err, &formatErr)
    assert.Equal(t, "photo.png", formatErr.Filename)
    // 格式校验在发请求之前
    assert.Equal(t, int32(0), requests.Load())
}

func TestDocMindClient_PollStatusMapping(t *testing.T) {
    tests := []struct {
        status  string
        want    JobStatus
        wantErr bool
    }{
        {"pending", JobProcessing, false},
        {"running", JobProcessing, false},
        {"succeeded", JobSuccess, false},
        {"failed", JobFailed, false},
        {"error", JobFailed, false},
        {"whatever", JobFailed, true},
    }

    for _, tt := range tests {
        t.Run(tt.status, func(t *testing.T) {
            srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
                fmt.Fprintf(w, `{"status":%q}`, tt.status)
            }))
            defer srv.Close()

            client := newDocMindTestClient(srv.URL, 10)
            got, err := client.Poll(context.Background(), "job-x")
            if tt.wantErr {
                require.Error(t, err)
            } else {
                require.NoError(t, err)
            }
            assert.Equal(t, tt.want, got)
        })
    }
}

func TestDocMindClient_SubmitEmptyJobID(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`{"job_id":""}`))
    }))
    defer srv.Close()

    client := newDocMindTestClient(srv.URL, 10)
    _, err := client.Submit(context.Background(), strings.NewReader("data"), "a.pdf")
    require.Error(t, err)
    assert.Contains(t, err.Error(), "empty job id")
}

func TestDocMindClient_ServerError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "boom", http.StatusInternalServerError)
    }))
    defer srv.Close()

    client := newDocMindTestClient(srv.URL, 10)
    _, err := client.Poll(context.Background(), "job-x")
    require.Error(t, err)
    assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestCheckFormat(t *testing.T) {
    tests := []struct {
        filename string
        want     models.FileType
        wantErr  bool
    }{
        {"report.pdf", models.PDF, false},
        {"Report.PDF", models.PDF, false},
        {"plan.docx", models.DOCX, false},
        {"notes.doc", models.DOCX, false},
        {"data.xlsx", models.Spreadsheet, false},
        {"data.xls", models.Spreadsheet, false},
        {"image.png", "", true},
        {"noext", "", true},
    }

    for _, tt := range tests {
        t.Run(tt.filename, func(t *testing.T) {
            got, err := checkFormat(tt.filename)
            if tt.wantErr {
                var formatErr *UnsupportedFormatError
                require.ErrorAs(t, err, &formatErr)
                return
            }
            require.NoError(t, err)
            assert.Equal(t, tt.want, got)
        })
    }
}
