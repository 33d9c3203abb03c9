//go:build integration

package integration

import (
	"context"
	"testing"

	"medbook/test/integration/testutil"
)

func TestAgentTools_BookThroughTool(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, api := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.InsertDoctor(t, testutil.DoctorDoc("doc-1", "Dr. Asha Rao", "Cardiology", "2030-06-02 09:00"))

	resp, err := api.CallTool(context.Background(), "book_doctor_appointment", map[string]string{
		"patient_name": "Ravi Kumar",
		"time":         "2030-06-02 09:00",
		"doctor_name":  "Asha Rao",
	})
	resp = testutil.MustOK(t, resp, err)
	testutil.AssertContains(t, resp, "Booking successful for Ravi Kumar with Dr. Asha Rao")

	resp, err = api.CallTool(context.Background(), "book_doctor_appointment", map[string]string{
		"patient_name": "Meera Iyer",
		"time":         "2030-06-02 09:00",
		"doctor_name":  "Asha Rao",
	})
	resp = testutil.MustOK(t, resp, err)
	testutil.AssertContains(t, resp, "has no available time slots")
}

func TestAgentTools_DoctorDetails(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, api := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.InsertDoctor(t, testutil.DoctorDoc("doc-1", "Dr. Asha Rao", "Cardiology", "2030-06-02 09:00"))
	resp, err := api.CallTool(context.Background(), "get_doctor_details", nil)
	resp = testutil.MustOK(t, resp, err)
	testutil.AssertContains(t, resp, "Asha Rao")
}
