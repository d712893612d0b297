package cli

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/roach88/sneakerengine/internal/api"
)

// sessionView is the result of login, register and whoami.
type sessionView struct {
	Authenticated bool      `json:"authenticated"`
	User          *api.User `json:"user,omitempty"`
}

func (v sessionView) renderText(w io.Writer, p palette) error {
	if !v.Authenticated || v.User == nil {
		_, err := fmt.Fprintln(w, "Not logged in")
		return err
	}
	_, err := fmt.Fprintf(w, "Logged in as %s (%s)\n", p.paint(p.accent, v.User.Username), v.User.Email)
	return err
}

// themeView is the result of the theme commands.
type themeView struct {
	Theme         string `json:"theme"`
	FollowsSystem bool   `json:"follows_system"`
}

func newThemeView(dark, follows bool) themeView {
	v := themeView{Theme: "light", FollowsSystem: follows}
	if dark {
		v.Theme = "dark"
	}
	return v
}

func (v themeView) renderText(w io.Writer, p palette) error {
	suffix := ""
	if v.FollowsSystem {
		suffix = " (following system)"
	}
	_, err := fmt.Fprintf(w, "%s%s\n", p.paint(p.accent, v.Theme), suffix)
	return err
}

type listingsView []api.Listing

func (v listingsView) renderText(w io.Writer, p palette) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No sneakers listed")
		return err
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBRAND\tSIZE\tCONDITION\tPRICE")
	for _, l := range v {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Brand, l.Size, l.Condition, formatPrice(l.Price))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return p.writeTable(w, buf.Bytes())
}

type listingView api.Listing

func (v listingView) renderText(w io.Writer, _ palette) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", v.Name)
	fmt.Fprintf(tw, "Brand:\t%s\n", v.Brand)
	fmt.Fprintf(tw, "Size:\t%s\n", v.Size)
	fmt.Fprintf(tw, "Condition:\t%s\n", v.Condition)
	fmt.Fprintf(tw, "Price:\t%s\n", formatPrice(v.Price))
	if v.Owner != nil {
		fmt.Fprintf(tw, "Owner:\t%s\n", v.Owner.Username)
	}
	if v.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", v.Description)
	}
	if v.ImageURL != "" {
		fmt.Fprintf(tw, "Image:\t%s\n", v.ImageURL)
	}
	return tw.Flush()
}

type propositionsView []api.Proposition

func (v propositionsView) renderText(w io.Writer, p palette) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No propositions")
		return err
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSNEAKER\tTYPE\tOFFER\tSTATUS")
	for _, prop := range v {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", prop.ID, prop.SneakerID, prop.OfferType, offerText(prop), prop.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return p.writeTable(w, buf.Bytes())
}

type propositionView api.Proposition

func (v propositionView) renderText(w io.Writer, _ palette) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	sneaker := v.SneakerID
	if v.Sneaker != nil {
		sneaker = fmt.Sprintf("%s (%s %s)", v.SneakerID, v.Sneaker.Brand, v.Sneaker.Name)
	}
	fmt.Fprintf(tw, "Sneaker:\t%s\n", sneaker)
	if v.Proposer != nil {
		fmt.Fprintf(tw, "Proposer:\t%s\n", v.Proposer.Username)
	}
	fmt.Fprintf(tw, "Type:\t%s\n", v.OfferType)
	fmt.Fprintf(tw, "Offer:\t%s\n", offerText(api.Proposition(v)))
	fmt.Fprintf(tw, "Status:\t%s\n", v.Status)
	if v.Message != "" {
		fmt.Fprintf(tw, "Message:\t%s\n", v.Message)
	}
	return tw.Flush()
}

func offerText(p api.Proposition) string {
	switch {
	case p.OfferPrice != nil:
		return formatPrice(*p.OfferPrice)
	case p.OfferSneakerID != "":
		return p.OfferSneakerID
	default:
		return "-"
	}
}

func formatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', 2, 64)
}
