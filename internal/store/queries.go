package store

// Account queries.
const (
	accountColumns = `id, username, core_account_id, ebay_user_id, country, site_id, currency,
	token_value, token_expires_at, location, return_policy, shipping, click_and_collect,
	last_products_sync, last_orders_sync, last_returns_sync, created_at, updated_at`

	queryUpsertAccount = `
		INSERT INTO accounts (
			username, core_account_id, ebay_user_id, country, site_id, currency,
			token_value, token_expires_at, location, return_policy, shipping, click_and_collect
		) VALUES (
			@username, @core_account_id, @ebay_user_id, @country, @site_id, @currency,
			@token_value, @token_expires_at, @location, @return_policy, @shipping, @click_and_collect
		)
		ON CONFLICT (username) DO UPDATE SET
			core_account_id   = EXCLUDED.core_account_id,
			ebay_user_id      = EXCLUDED.ebay_user_id,
			country           = EXCLUDED.country,
			site_id           = EXCLUDED.site_id,
			currency          = EXCLUDED.currency,
			token_value       = EXCLUDED.token_value,
			token_expires_at  = EXCLUDED.token_expires_at,
			location          = EXCLUDED.location,
			return_policy     = EXCLUDED.return_policy,
			shipping          = EXCLUDED.shipping,
			click_and_collect = EXCLUDED.click_and_collect,
			updated_at        = now()
		RETURNING id, created_at, updated_at`

	queryGetAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	queryGetAccountByUsername = `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	queryGetAccountByEbayUserID = `SELECT ` + accountColumns + ` FROM accounts WHERE ebay_user_id = $1`

	queryListAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	// Watermark columns are interpolated from a fixed allow-list.
	queryUpdateWatermarkFmt = `UPDATE accounts SET %s = $2, updated_at = now() WHERE id = $1`
)

// Listing queries.
const (
	listingColumns = `id, account_id, core_product_id, ebay_item_id, sku, status, status_details,
	title, description, image_urls, gross_price, currency, quantity, tax_rate, category_id,
	specifics, shipping, return_policy, click_and_collect, variations,
	published_at, unpublished_at, ends_at, created_at, updated_at`

	listingSelect = `SELECT ` + listingColumns + ` FROM listings`

	queryCreateListing = `
		INSERT INTO listings (
			account_id, core_product_id, sku, status, status_details,
			title, description, image_urls, gross_price, currency, quantity, tax_rate, category_id,
			specifics, shipping, return_policy, click_and_collect, variations
		) VALUES (
			@account_id, @core_product_id, @sku, @status, @status_details,
			@title, @description, @image_urls, @gross_price, @currency, @quantity, @tax_rate, @category_id,
			@specifics, @shipping, @return_policy, @click_and_collect, @variations
		)
		RETURNING id, created_at, updated_at`

	queryUpdateListingSnapshot = `
		UPDATE listings SET
			title             = @title,
			description       = @description,
			image_urls        = @image_urls,
			gross_price       = @gross_price,
			currency          = @currency,
			quantity          = @quantity,
			tax_rate          = @tax_rate,
			category_id       = @category_id,
			specifics         = @specifics,
			shipping          = @shipping,
			return_policy     = @return_policy,
			click_and_collect = @click_and_collect,
			variations        = @variations,
			updated_at        = now()
		WHERE id = @id
		RETURNING updated_at`

	queryGetListing = listingSelect + ` WHERE id = $1`

	queryGetActiveListing = listingSelect + `
		WHERE account_id = $1 AND core_product_id = $2 AND status <> 'unpublished'
		ORDER BY created_at DESC
		LIMIT 1`

	queryGetListingByEbayItemID = listingSelect + ` WHERE ebay_item_id = $1`

	queryGetListingBySKU = listingSelect + `
		WHERE (sku = $1 OR variations @> jsonb_build_array(jsonb_build_object('sku', $1::text)))
		  AND status <> 'unpublished'
		ORDER BY created_at DESC
		LIMIT 1`

	queryListPublishedListings = listingSelect + `
		WHERE account_id = $1 AND status = 'published' AND core_product_id = ANY($2)`

	queryTransitionListing = `
		UPDATE listings SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)`

	queryMarkListingPublished = `
		UPDATE listings SET
			status         = 'published',
			ebay_item_id   = $2,
			published_at   = $3,
			ends_at        = $4,
			status_details = '[]',
			updated_at     = now()
		WHERE id = $1 AND status = 'in_progress'`

	queryMarkListingFailed = `
		UPDATE listings SET
			status         = 'failed',
			status_details = $2,
			updated_at     = now()
		WHERE id = $1 AND status = 'in_progress'`

	queryMarkListingUnpublished = `
		UPDATE listings SET
			status         = 'unpublished',
			unpublished_at = $2,
			updated_at     = now()
		WHERE id = $1 AND status <> 'unpublished'`

	queryUpdateListingStock = `
		UPDATE listings SET
			gross_price = $2,
			quantity    = $3,
			variations  = $4,
			updated_at  = now()
		WHERE id = $1`
)

// Item update and API attempt queries.
const (
	itemUpdateColumns = `id, listing_id, status, price, quantity, status_details, variation_updates,
	created_at, updated_at`

	queryCreateItemUpdate = `
		INSERT INTO item_updates (listing_id, status, price, quantity, status_details, variation_updates)
		VALUES (@listing_id, @status, @price, @quantity, @status_details, @variation_updates)
		RETURNING id, created_at, updated_at`

	queryGetItemUpdate = `SELECT ` + itemUpdateColumns + ` FROM item_updates WHERE id = $1`

	querySaveItemUpdate = `
		UPDATE item_updates SET
			status            = @status,
			status_details    = @status_details,
			variation_updates = @variation_updates,
			updated_at        = now()
		WHERE id = @id
		RETURNING updated_at`

	queryListItemUpdates = `SELECT ` + itemUpdateColumns + ` FROM item_updates
		WHERE listing_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryInsertAPIAttempt = `
		INSERT INTO api_attempts (listing_id, update_id, type, success, request, response)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	queryListAPIAttempts = `
		SELECT id, listing_id, update_id, type, success, request, response, created_at
		FROM api_attempts
		WHERE listing_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

// Order and return queries.
const (
	orderColumns = `id, account_id, ebay_order_id, core_order_id, buyer_user_id, buyer_email,
	total, currency, payment_method, shipping_service, shipping_address, lines,
	ebay_status, core_status, tracking_number, carrier, created_time, modified_time,
	created_at, updated_at`

	queryUpsertOrder = `
		INSERT INTO orders (
			account_id, ebay_order_id, buyer_user_id, buyer_email, total, currency,
			payment_method, shipping_service, shipping_address, lines, ebay_status,
			tracking_number, carrier, created_time, modified_time
		) VALUES (
			@account_id, @ebay_order_id, @buyer_user_id, @buyer_email, @total, @currency,
			@payment_method, @shipping_service, @shipping_address, @lines, @ebay_status,
			@tracking_number, @carrier, @created_time, @modified_time
		)
		ON CONFLICT (account_id, ebay_order_id) DO UPDATE SET
			buyer_email      = EXCLUDED.buyer_email,
			total            = EXCLUDED.total,
			payment_method   = EXCLUDED.payment_method,
			shipping_service = EXCLUDED.shipping_service,
			shipping_address = EXCLUDED.shipping_address,
			lines            = EXCLUDED.lines,
			ebay_status      = EXCLUDED.ebay_status,
			tracking_number  = EXCLUDED.tracking_number,
			carrier          = EXCLUDED.carrier,
			modified_time    = EXCLUDED.modified_time,
			updated_at       = now()
		RETURNING id, core_order_id, core_status, created_at, updated_at`

	queryGetOrderByEbayID = `SELECT ` + orderColumns + ` FROM orders
		WHERE account_id = $1 AND ebay_order_id = $2`

	queryGetOrderByCoreID = `SELECT ` + orderColumns + ` FROM orders WHERE core_order_id = $1`

	querySetCoreOrderID = `
		UPDATE orders SET core_order_id = $2, updated_at = now()
		WHERE id = $1 AND (core_order_id IS NULL OR core_order_id = $2)`

	queryUpdateOrderCoreStatus = `
		UPDATE orders SET core_status = $2, updated_at = now() WHERE id = $1`

	returnColumns = `id, order_id, core_return_id, refund_amount, refund_type, note,
	synced_with_ebay, created_at, updated_at`

	// synced_with_ebay is never reset by an upsert.
	queryUpsertReturn = `
		INSERT INTO returns (order_id, core_return_id, refund_amount, refund_type, note)
		VALUES (@order_id, @core_return_id, @refund_amount, @refund_type, @note)
		ON CONFLICT (core_return_id) DO UPDATE SET
			refund_amount = EXCLUDED.refund_amount,
			refund_type   = EXCLUDED.refund_type,
			note          = EXCLUDED.note,
			updated_at    = now()
		RETURNING id, synced_with_ebay, created_at, updated_at`

	queryGetReturnByCoreID = `SELECT ` + returnColumns + ` FROM returns WHERE core_return_id = $1`

	queryMarkReturnSynced = `
		UPDATE returns SET synced_with_ebay = true, updated_at = now() WHERE id = $1`
)

// Catalog queries.
const (
	queryDeleteCategories = `DELETE FROM categories WHERE country = $1`

	queryGetCategory = `
		SELECT id, country, parent_id, name, level, is_leaf, variations_enabled
		FROM categories WHERE country = $1 AND id = $2`

	queryListChildCategories = `
		SELECT id, country, parent_id, name, level, is_leaf, variations_enabled
		FROM categories WHERE country = $1 AND parent_id = $2 ORDER BY name`

	queryListLeafCategoryIDs = `
		SELECT id FROM categories WHERE country = $1 AND is_leaf ORDER BY id`

	queryDeleteSpecifics = `
		DELETE FROM category_specifics WHERE country = $1 AND category_id = ANY($2)`

	queryListSpecifics = `
		SELECT category_id, country, name, required, selection_only, max_values, "values"
		FROM category_specifics
		WHERE country = $1 AND category_id = $2
		ORDER BY required DESC, name`

	queryDeleteShippingServices = `DELETE FROM shipping_services WHERE country = $1`

	queryListShippingServices = `
		SELECT code, country, description, carrier, international, valid, updated_at
		FROM shipping_services
		WHERE country = $1
		ORDER BY code`
)

// Notification queries.
const (
	notificationSelect = `SELECT id, event_type, timestamp, signature, payload, status, details,
	created_at, updated_at FROM notifications`

	queryInsertNotification = `
		INSERT INTO notifications (event_type, timestamp, signature, payload, status, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	queryUpdateNotificationStatus = `
		UPDATE notifications SET status = $2, details = $3, updated_at = now() WHERE id = $1`
)

// Scheduler queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name)
		VALUES ($1)
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = now(),
			status        = $2,
			error_text    = $3,
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryListLatestJobRuns = `
		SELECT DISTINCT ON (job_name)
			id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		ORDER BY job_name, started_at DESC`

	queryMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldJobRuns = `
		DELETE FROM job_runs WHERE started_at < now() - interval '30 days'`

	queryAcquireSchedulerLock = `
		INSERT INTO scheduler_locks (job_name, lock_holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name) DO UPDATE
			SET locked_at   = now(),
				lock_holder = EXCLUDED.lock_holder,
				expires_at  = EXCLUDED.expires_at
			WHERE scheduler_locks.expires_at < now()
		RETURNING job_name`

	queryReleaseSchedulerLock = `
		DELETE FROM scheduler_locks WHERE job_name = $1 AND lock_holder = $2`
)
