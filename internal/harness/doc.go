// Package harness runs probe scenarios against the tuition server.
//
// A scenario is an ordered list of steps. Each step builds one probe request
// from the results of the steps before it, which is how a bearer token
// captured by a login step reaches the authenticated calls after it.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: student-dashboard
//	description: "Log in as a student and load the dashboard"
//	mint:
//	  student:
//	    claims: { id: "1", email: "student@test.com", role: student }
//	    expiry: 30d
//	steps:
//	  - name: login
//	    method: POST
//	    path: /api/auth/login
//	    body: { email: student@test.com, password: password123 }
//	    capture: token
//	    expect: 200
//	  - name: stats
//	    path: /api/student/dashboard/stats
//	    auth: login
//
// "auth" names an earlier step that captured a token, or a minted token.
// "requires" lists earlier steps that must have succeeded.
// "expect" is a hint: a mismatch is reported, never enforced.
//
// # Execution
//
// Steps run strictly one after another. A step whose prerequisite did not
// succeed is skipped, never sent with a missing token, and the skip is
// reported separately from failures. A run always completes and ends with a
// summary line, whatever the individual outcomes.
//
// # Usage
//
//	sc, err := harness.LoadScenario("scenarios/jobs.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plan, err := harness.Compile(sc, cfg, issuer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := harness.NewRunner(probe.New()).RunPlan(ctx, plan)
//	fmt.Println(result.Summary())
package harness
