package test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSuperadminCreatesAdminAndUser(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)

	code, result := doJSON(t, app, "GET", fmt.Sprintf("/api/v1/users/%d", userID), rootToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Fetching created user returned status %d", code)
	}
	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data field in user response")
	}
	if data["role"] != "user" {
		t.Errorf("Expected role user but got %v", data["role"])
	}
	assigned, ok := data["assigned_admin"].(map[string]interface{})
	if !ok || assigned["Int64"] != float64(adminID) {
		t.Errorf("Expected assigned admin %d but got %v", adminID, data["assigned_admin"])
	}
	if data["is_active"] != true {
		t.Errorf("Expected new account to be active")
	}
}

func TestAdminCreatesUserAutoSupervised(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	adminToken := loginAs(t, app, adminName, testPassword)

	// No assigned_admin in the request; the creating admin supervises.
	userID, _ := CreateTestAccount(t, app, adminToken, "user", nil)

	code, result := doJSON(t, app, "GET", fmt.Sprintf("/api/v1/users/%d", userID), adminToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Admin fetching own user returned status %d", code)
	}
	data := result["data"].(map[string]interface{})
	assigned, ok := data["assigned_admin"].(map[string]interface{})
	if !ok || assigned["Int64"] != float64(adminID) {
		t.Errorf("Expected creating admin %d as supervisor but got %v", adminID, data["assigned_admin"])
	}
}

func TestAdminCannotCreateAdmin(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	_, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	adminToken := loginAs(t, app, adminName, testPassword)

	code, _ := doJSON(t, app, "POST", "/api/v1/users", adminToken, map[string]interface{}{
		"username": fmt.Sprintf("escalation_%d", time.Now().UnixNano()),
		"email":    fmt.Sprintf("escalation_%d@example.com", time.Now().UnixNano()),
		"password": testPassword,
		"role":     "admin",
	})
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d but got %d", http.StatusForbidden, code)
	}
}

func TestSuperadminRoleNeverOffered(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)

	code, _ := doJSON(t, app, "POST", "/api/v1/users", rootToken, map[string]interface{}{
		"username": fmt.Sprintf("usurper_%d", time.Now().UnixNano()),
		"email":    fmt.Sprintf("usurper_%d@example.com", time.Now().UnixNano()),
		"password": testPassword,
		"role":     "superadmin",
	})
	if code != http.StatusBadRequest {
		t.Errorf("Expected status %d for superadmin role but got %d", http.StatusBadRequest, code)
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	_, username := CreateTestAccount(t, app, rootToken, "admin", nil)

	code, _ := doJSON(t, app, "POST", "/api/v1/users", rootToken, map[string]interface{}{
		"username": username,
		"email":    fmt.Sprintf("other_%d@example.com", time.Now().UnixNano()),
		"password": testPassword,
		"role":     "admin",
	})
	if code != http.StatusConflict {
		t.Errorf("Expected status %d for duplicate username but got %d", http.StatusConflict, code)
	}
}

func TestUserCannotListUsers(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	_, username := CreateTestAccount(t, app, rootToken, "user", &adminID)
	userToken := loginAs(t, app, username, testPassword)

	code, _ := doJSON(t, app, "GET", "/api/v1/users", userToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d but got %d", http.StatusForbidden, code)
	}
}

func TestAdminListsOnlyOwnUsers(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	otherAdminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	ownUserID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)
	foreignUserID, _ := CreateTestAccount(t, app, rootToken, "user", &otherAdminID)
	adminToken := loginAs(t, app, adminName, testPassword)

	code, result := doJSON(t, app, "GET", "/api/v1/users", adminToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Listing users returned status %d", code)
	}
	rows, ok := result["data"].([]interface{})
	if !ok {
		t.Fatalf("Expected data list in users response")
	}
	seenOwn, seenForeign := false, false
	for _, row := range rows {
		id := int(row.(map[string]interface{})["id"].(float64))
		if id == ownUserID {
			seenOwn = true
		}
		if id == foreignUserID {
			seenForeign = true
		}
	}
	if !seenOwn {
		t.Errorf("Expected admin listing to include own user %d", ownUserID)
	}
	if seenForeign {
		t.Errorf("Admin listing must not include user %d of another admin", foreignUserID)
	}
}

func TestCrossAdminManagementDenied(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	_, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	otherAdminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	foreignUserID, _ := CreateTestAccount(t, app, rootToken, "user", &otherAdminID)
	adminToken := loginAs(t, app, adminName, testPassword)

	path := fmt.Sprintf("/api/v1/users/%d", foreignUserID)

	code, _ := doJSON(t, app, "GET", path, adminToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d fetching foreign user but got %d", http.StatusForbidden, code)
	}

	newEmail := fmt.Sprintf("hijack_%d@example.com", time.Now().UnixNano())
	code, _ = doJSON(t, app, "PUT", path, adminToken, map[string]interface{}{"email": newEmail})
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d updating foreign user but got %d", http.StatusForbidden, code)
	}

	code, _ = doJSON(t, app, "DELETE", path, adminToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d deleting foreign user but got %d", http.StatusForbidden, code)
	}
}

func TestSelfDeactivationBlocked(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, rootID, _ := CreateTestSuperadmin(t, app)

	code, _ := doJSON(t, app, "PATCH", fmt.Sprintf("/api/v1/users/%d/active", rootID), rootToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d for self-deactivation but got %d", http.StatusForbidden, code)
	}

	code, _ = doJSON(t, app, "DELETE", fmt.Sprintf("/api/v1/users/%d", rootID), rootToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d for self-deletion but got %d", http.StatusForbidden, code)
	}
}

func TestToggleUserActiveRoundTrip(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)
	path := fmt.Sprintf("/api/v1/users/%d/active", userID)

	code, result := doJSON(t, app, "PATCH", path, rootToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Deactivating user returned status %d", code)
	}
	if data := result["data"].(map[string]interface{}); data["is_active"] != false {
		t.Errorf("Expected is_active false after first toggle, got %v", data["is_active"])
	}

	code, result = doJSON(t, app, "PATCH", path, rootToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Reactivating user returned status %d", code)
	}
	if data := result["data"].(map[string]interface{}); data["is_active"] != true {
		t.Errorf("Expected is_active true after second toggle, got %v", data["is_active"])
	}
}

func TestUpdateUserEmailAndPassword(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, username := CreateTestAccount(t, app, rootToken, "user", &adminID)

	newEmail := fmt.Sprintf("renamed_%d@example.com", time.Now().UnixNano())
	code, result := doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/users/%d", userID), rootToken, map[string]interface{}{
		"email":    newEmail,
		"password": "changed456",
	})
	if code != http.StatusOK {
		t.Fatalf("Updating user returned status %d: %v", code, result["message"])
	}
	if data := result["data"].(map[string]interface{}); data["email"] != newEmail {
		t.Errorf("Expected email %s but got %v", newEmail, data["email"])
	}

	// Old password is gone, new one works
	codeOld, _ := doJSON(t, app, "POST", "/api/v1/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if codeOld != http.StatusUnauthorized {
		t.Errorf("Expected old password to be rejected, got status %d", codeOld)
	}
	loginAs(t, app, username, "changed456")
}

func TestReassignSupervisorSuperadminOnly(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	otherAdminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)
	adminToken := loginAs(t, app, adminName, testPassword)
	path := fmt.Sprintf("/api/v1/users/%d", userID)

	code, _ := doJSON(t, app, "PUT", path, adminToken, map[string]interface{}{
		"assigned_admin": otherAdminID,
	})
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d when admin reassigns supervisor but got %d", http.StatusForbidden, code)
	}

	code, result := doJSON(t, app, "PUT", path, rootToken, map[string]interface{}{
		"assigned_admin": otherAdminID,
	})
	if code != http.StatusOK {
		t.Fatalf("Superadmin reassigning supervisor returned status %d: %v", code, result["message"])
	}
	data := result["data"].(map[string]interface{})
	assigned, ok := data["assigned_admin"].(map[string]interface{})
	if !ok || assigned["Int64"] != float64(otherAdminID) {
		t.Errorf("Expected supervisor %d but got %v", otherAdminID, data["assigned_admin"])
	}

	// A regular user account can never supervise anyone.
	code, _ = doJSON(t, app, "PUT", path, rootToken, map[string]interface{}{
		"assigned_admin": userID,
	})
	if code != http.StatusBadRequest {
		t.Errorf("Expected status %d for non-admin supervisor but got %d", http.StatusBadRequest, code)
	}
}

func TestPromotionClearsSupervision(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, adminName := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)
	adminToken := loginAs(t, app, adminName, testPassword)
	path := fmt.Sprintf("/api/v1/users/%d", userID)

	code, result := doJSON(t, app, "PUT", path, rootToken, map[string]interface{}{
		"role": "admin",
	})
	if code != http.StatusOK {
		t.Fatalf("Promoting user returned status %d: %v", code, result["message"])
	}
	data := result["data"].(map[string]interface{})
	if data["role"] != "admin" {
		t.Errorf("Expected role admin but got %v", data["role"])
	}
	if assigned, ok := data["assigned_admin"].(map[string]interface{}); ok && assigned["Valid"] == true {
		t.Errorf("Expected supervision to be cleared on promotion, got %v", data["assigned_admin"])
	}

	// The former supervisor has no hold on a fellow admin
	code, _ = doJSON(t, app, "GET", path, adminToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected status %d for former supervisor but got %d", http.StatusForbidden, code)
	}
}

func TestPromotionRejectsSupervisorInSameRequest(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	otherAdminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)

	code, _ := doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/users/%d", userID), rootToken, map[string]interface{}{
		"role":           "admin",
		"assigned_admin": otherAdminID,
	})
	if code != http.StatusBadRequest {
		t.Errorf("Expected status %d for promotion with a supervisor but got %d", http.StatusBadRequest, code)
	}
}

func TestDeleteUser(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	userID, _ := CreateTestAccount(t, app, rootToken, "user", &adminID)
	path := fmt.Sprintf("/api/v1/users/%d", userID)

	code, _ := doJSON(t, app, "DELETE", path, rootToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Deleting user returned status %d", code)
	}

	code, _ = doJSON(t, app, "GET", path, rootToken, nil)
	if code != http.StatusNotFound {
		t.Errorf("Expected status %d after deletion but got %d", http.StatusNotFound, code)
	}
}

func TestUploadProfilePicture(t *testing.T) {
	requireDB(t)
	app := CreateTestApp()

	rootToken, _, _ := CreateTestSuperadmin(t, app)
	adminID, _ := CreateTestAccount(t, app, rootToken, "admin", nil)
	_, username := CreateTestAccount(t, app, rootToken, "user", &adminID)
	userToken := loginAs(t, app, username, testPassword)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("profile_picture", "avatar.png")
	if err != nil {
		t.Fatalf("Error building multipart form: %v", err)
	}
	// A PNG header is enough for the extension and size checks
	if _, err := part.Write([]byte("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("Error writing file part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/upload/profile_picture", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d for upload but got %d", http.StatusOK, resp.StatusCode)
	}
}
