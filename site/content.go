package site

import (
	"time"

	"github.com/goliatone/r6-tools/auth"
)

// Brand is the product name shown in the header and footer
const Brand = "R6 Tools"

// Feature is a landing page card
type Feature struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Preview string   `json:"preview"`
}

// Link is a labelled href
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Landing is the marketing page content
type Landing struct {
	Title       string    `json:"title"`
	Highlight   string    `json:"highlight"`
	Tagline     string    `json:"tagline"`
	PrimaryCTA  Link      `json:"primary_cta"`
	FeaturesTag string    `json:"features_tag"`
	Features    []Feature `json:"features"`
	CTATitle    string    `json:"cta_title"`
	CTABody     string    `json:"cta_body"`
	CTAButton   Link      `json:"cta_button"`
	FooterLinks []Link    `json:"footer_links"`
	Copyright   string    `json:"copyright"`
}

// NewLanding returns the landing content, the copyright year comes from now
func NewLanding(now time.Time) Landing {
	return Landing{
		Title:     "The Ultimate Rainbow Six Siege",
		Highlight: "Strategy Platform",
		Tagline: "Master map knowledge, plan strategies, track performance, and improve your game " +
			"with our comprehensive suite of tools designed for competitive R6 players.",
		PrimaryCTA:  Link{Label: "Get Started", Href: auth.SignUpPath},
		FeaturesTag: "Professional Tools for Serious Players",
		Features: []Feature{
			{
				ID:    "callouts",
				Title: "Interactive Map Callouts",
				Bullets: []string{
					"Multi-floor interactive maps with custom callouts",
					"Simultaneous floor viewing with transparency",
					"Define and edit stair/hatch locations",
				},
				Preview: "Interactive Map Preview",
			},
			{
				ID:    "strats",
				Title: "Advanced Strat Planning",
				Bullets: []string{
					"Drag-and-drop operator and gadget placement",
					"Drawing tools for annotations and arrows",
					"Save and export your strategies",
				},
				Preview: "Strategy Board Preview",
			},
			{
				ID:    "matches",
				Title: "Match Performance Tracking",
				Bullets: []string{
					"Log detailed match information",
					"Track operator picks and round results",
					"Visualize team performance trends",
				},
				Preview: "Statistics Dashboard Preview",
			},
			{
				ID:    "training",
				Title: "Callout Training",
				Bullets: []string{
					"Timed quiz modes for callout mastery",
					"Click-to-identify or type-to-answer modes",
					"Track your progress and compete",
				},
				Preview: "Quiz Interface Preview",
			},
		},
		CTATitle: "Ready to Take Your Game to the Next Level?",
		CTABody: "Join thousands of players who are already using R6 Tools to improve their gameplay. " +
			"Sign up now and get access to all our premium features.",
		CTAButton: Link{Label: "Start Free Trial", Href: auth.SignUpPath},
		FooterLinks: []Link{
			{Label: "Terms", Href: "#"},
			{Label: "Privacy", Href: "#"},
			{Label: "Contact", Href: "#"},
		},
		Copyright: copyright(now),
	}
}

func copyright(now time.Time) string {
	return "© " + now.Format("2006") + " " + Brand + ". All rights reserved."
}

// Header is the session aware page header
type Header struct {
	Brand string        `json:"brand"`
	Home  string        `json:"home"`
	Nav   []Link        `json:"nav"`
	Menu  auth.UserMenu `json:"menu"`
}

// NewHeader builds the header for state
func NewHeader(state auth.AuthState) Header {
	return Header{
		Brand: Brand,
		Home:  auth.HomePath,
		Nav: []Link{
			{Label: "Callouts", Href: "/callouts"},
			{Label: "Strats", Href: "#strats"},
			{Label: "Matches", Href: "#matches"},
			{Label: "Training", Href: "#training"},
		},
		Menu: auth.NewUserMenu(state),
	}
}
