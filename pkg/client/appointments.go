package client

import (
	"context"
	"fmt"
	"net/url"
)

// AppointmentsClient talks to the appointments service over HTTP.
type AppointmentsClient struct {
	httpClient *HttpClient
}

func NewAppointmentsClient(baseURL string) *AppointmentsClient {
	return &AppointmentsClient{httpClient: NewHttpClient(baseURL)}
}

func (c *AppointmentsClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *AppointmentsClient) Book(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/appointments/book", body)
}

func (c *AppointmentsClient) List(ctx context.Context, doctorID, patientName string, limit int, offset int64) (*Response, error) {
	q := url.Values{}
	if doctorID != "" {
		q.Set("doctor_id", doctorID)
	}
	if patientName != "" {
		q.Set("patient_name", patientName)
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	return c.httpClient.GET(ctx, "/api/v1/appointments?"+q.Encode())
}

func (c *AppointmentsClient) UpdateStatus(ctx context.Context, id string, status string) (*Response, error) {
	path := "/api/v1/appointments/id/" + url.PathEscape(id) + "/status"
	return c.httpClient.PATCH(ctx, path, map[string]string{"status": status})
}

func (c *AppointmentsClient) GetAvailability(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/doctors/availability")
}

func (c *AppointmentsClient) GetDoctor(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/doctors/id/"+url.PathEscape(id))
}

func (c *AppointmentsClient) AddAvailability(ctx context.Context, doctorID string, date string, timeSlots []string) (*Response, error) {
	path := "/api/v1/doctors/id/" + url.PathEscape(doctorID) + "/availability"
	return c.httpClient.POST(ctx, path, map[string]any{"date": date, "time_slots": timeSlots})
}

func (c *AppointmentsClient) RemoveAvailability(ctx context.Context, doctorID string, slot string) (*Response, error) {
	path := "/api/v1/doctors/id/" + url.PathEscape(doctorID) + "/availability/" + url.PathEscape(slot)
	return c.httpClient.DELETE(ctx, path, nil)
}

func (c *AppointmentsClient) DeleteBooking(ctx context.Context, doctorID, patientName, time string) (*Response, error) {
	path := "/api/v1/doctors/id/" + url.PathEscape(doctorID) + "/bookings"
	return c.httpClient.DELETE(ctx, path, map[string]string{"patient_name": patientName, "time": time})
}

// CallTool invokes an agent tool by name. Sign the client first when the
// service runs with a tool secret.
func (c *AppointmentsClient) CallTool(ctx context.Context, name string, params any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/agent/tools/"+url.PathEscape(name), params)
}

func (c *AppointmentsClient) Stats(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/appointments/stats")
}
