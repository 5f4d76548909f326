package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterSiteMessage]          = (*RegisterSiteCommand)(nil)
	_ gocmd.Commander[UpdateSiteMessage]            = (*UpdateSiteCommand)(nil)
	_ gocmd.Commander[RotateSiteCredentialsMessage] = (*RotateSiteCredentialsCommand)(nil)
	_ gocmd.Commander[DeleteSiteMessage]            = (*DeleteSiteCommand)(nil)
	_ gocmd.Commander[CancelTransactionMessage]     = (*CancelTransactionCommand)(nil)
)
