//go:build azure

package archive

import (
	"context"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

const azAccountEnvVar = "AZURE_STORAGE_ACCOUNT"

// azureSource reads archived packets from an Azure Blob Storage container.
type azureSource struct {
	container *container.Client
}

func newAzureSource(_ context.Context, cfg Config) (Source, error) {
	account := os.Getenv(azAccountEnvVar)
	cred, err := azblob.NewSharedKeyCredential(account, os.Getenv("AZURE_STORAGE_KEY"))
	if err != nil {
		return nil, err
	}
	svc, err := azblob.NewServiceClientWithSharedKeyCredential("https://"+account+".blob.core.windows.net/", cred, nil)
	if err != nil {
		return nil, err
	}
	return &azureSource{container: svc.ServiceClient().NewContainerClient(cfg.Bucket)}, nil
}

func (a *azureSource) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	pager := a.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			objs = append(objs, Object{Key: *item.Name, Size: size})
		}
	}
	return objs, nil
}

func (a *azureSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	blob := a.container.NewBlobClient(key)
	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *azureSource) Close() error { return nil }
