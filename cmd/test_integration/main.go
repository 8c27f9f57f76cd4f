package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if u := os.Getenv("TEXTY_URL"); u != "" {
		baseURL = u
	}
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	scenarioID := fmt.Sprintf("smoke-%d", time.Now().Unix())

	fmt.Println("1. Starting scenario...")
	var started struct {
		Text string `json:"text"`
		Node struct {
			ID       string   `json:"id"`
			Timestep int      `json:"timestep"`
			Previous []string `json:"previous"`
		} `json:"node"`
	}
	if !sendRequest("POST", "/scenarios", map[string]any{"scenario_id": scenarioID, "seed": "zantar"}, http.StatusOK, &started) {
		fail("Start scenario")
	}
	fmt.Printf("PASSED: Start scenario (timestep %d)\n", started.Node.Timestep)

	fmt.Println("2. Taking a step...")
	var stepped struct {
		Intent string `json:"intent"`
		Node   struct {
			Timestep int      `json:"timestep"`
			Previous []string `json:"previous"`
		} `json:"node"`
	}
	if !sendRequest("POST", "/scenarios/"+scenarioID+"/steps", map[string]any{"input": "I look around the precinct."}, http.StatusOK, &stepped) {
		fail("Step")
	}
	if len(stepped.Node.Previous) != len(started.Node.Previous)+1 {
		fail(fmt.Sprintf("Step: chain length %d, want %d", len(stepped.Node.Previous), len(started.Node.Previous)+1))
	}
	if stepped.Node.Timestep < started.Node.Timestep {
		fail("Step: timestep went backwards")
	}
	fmt.Printf("PASSED: Step (intent %s)\n", stepped.Intent)

	fmt.Println("3. Undoing...")
	var undone struct {
		Node struct {
			ID string `json:"id"`
		} `json:"node"`
	}
	if !sendRequest("POST", "/scenarios/"+scenarioID+"/undo", nil, http.StatusOK, &undone) {
		fail("Undo")
	}
	if undone.Node.ID != started.Node.ID {
		fail("Undo: did not return to the opening node")
	}
	fmt.Println("PASSED: Undo")

	fmt.Println("4. Deleting...")
	if !sendRequest("DELETE", "/scenarios/"+scenarioID, nil, http.StatusNoContent, nil) {
		fail("Delete")
	}
	fmt.Println("PASSED: Delete")
}

func fail(step string) {
	fmt.Printf("FAILED: %s\n", step)
	os.Exit(1)
}

func sendRequest(method, endpoint string, payload interface{}, wantStatus int, out any) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return true
}
