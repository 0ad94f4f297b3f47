package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/client/services"
)

// Lookup geolocates ip, or the user's own address when ip is empty.
func (a *App) Lookup(ctx context.Context, ip string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	var (
		geo models.GeoLocation
		err error
	)
	if ip == "" {
		geo, err = a.geoService.MyLocation(ctx)
	} else {
		geo, err = a.geoService.Lookup(ctx, ip)
	}
	if err != nil {
		return err
	}

	a.printGeo(geo)
	return nil
}

func (a *App) printGeo(g models.GeoLocation) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "IP:\t%s\n", g.IP)
	fmt.Fprintf(tw, "City:\t%s\n", g.City)
	fmt.Fprintf(tw, "Region:\t%s\n", g.Region)
	fmt.Fprintf(tw, "Country:\t%s\n", g.Country)
	fmt.Fprintf(tw, "Coordinates:\t%.4f, %.4f\n", g.Latitude, g.Longitude)
	if g.Postal != "" {
		fmt.Fprintf(tw, "Postal:\t%s\n", g.Postal)
	}
	fmt.Fprintf(tw, "Timezone:\t%s\n", g.Timezone)
	fmt.Fprintf(tw, "ISP:\t%s\n", g.Org)
	_ = tw.Flush()
}

// History lists saved lookups, newest first as returned by the server.
func (a *App) History(ctx context.Context) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	items, err := a.geoService.History(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.println("No search history yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIP\tLOCATION\tSEARCHED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s, %s\t%s\n",
			it.ID, it.IP, it.GeoData.City, it.GeoData.Country, it.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) Delete(ctx context.Context, ids []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.geoService.DeleteHistory(ctx, ids); err != nil {
		return err
	}
	a.printf("Deleted %d item(s)\n", len(ids))
	return nil
}

// Logins lists the user's login history.
func (a *App) Logins(ctx context.Context) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	logins, err := a.loginsService.Logins(ctx)
	if err != nil {
		return err
	}
	if len(logins) == 0 {
		a.println("No login history")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tIP\tLOCATION\tDEVICE")
	for _, l := range logins {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			services.FormatLoginDate(l.When()), l.IPAddress, services.LocationString(l.Location), services.DeviceInfo(l.UserAgent))
	}
	return tw.Flush()
}
